package bubbletea

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// StatusLine exports statusLine for testing.
func StatusLine(m Model) string {
	return m.statusLine()
}

// SetRunning puts the model in the running state without a session.
func SetRunning(m Model) Model {
	m.running = true
	return m
}
