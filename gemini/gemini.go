// Package gemini streams responses straight from the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK behind relay.Transport: the
// model's streaming iterator is translated into wire frames written to an
// in-process pipe, so the session controller consumes them exactly like a
// backend stream. Messages are persisted through a relay.Recorder so the
// post-stream refetch sees the final answer.
package gemini

const (
	defaultModel     = "gemini-2.5-flash"
	defaultMaxTokens = 65536

	// webSearchTool names the tool call reported when the answer was
	// grounded with Google Search.
	webSearchTool = "web_search"
)
