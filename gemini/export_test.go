package gemini

import (
	"context"
	"iter"

	"google.golang.org/genai"
)

// GenerateFunc matches genai's Models.GenerateContentStream.
type GenerateFunc = func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// NewWithGenerator creates a Transport backed by generate instead of the API.
func NewWithGenerator(generate GenerateFunc, store Recorder, opts ...Option) *Transport {
	return newTransport(generate, store, opts...)
}
