package bubbletea

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/relay"
	"github.com/fwojciec/relay/markdown"
	"github.com/fwojciec/relay/session"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

const historyTimeout = 10 * time.Second

// Model is the Bubble Tea model for the relay TUI.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable transcript. Exported for test access.
	Viewport viewport.Model

	spinner  spinner.Model
	starter  Starter
	store    relay.Store
	styles   Styles
	renderer *markdown.Renderer

	conversationID string
	blocks         []MessageBlock
	shown          int // conversation messages already in blocks

	// The current turn. turnStart indexes the first block of the live
	// response; thinking and reply are created on first use.
	turnStart int
	thinking  *ThinkingBlock
	reply     *AssistantTextBlock

	running         bool
	cancelRequested bool
	session         *session.Session
	feed            *feed
	last            relay.Response
	err             error
	ready           bool
}

// Option configures a Model.
type Option func(*Model)

// WithConversation continues an existing conversation. Its history is
// loaded from the store when the program starts.
func WithConversation(id string) Option {
	return func(m *Model) { m.conversationID = id }
}

// New creates a TUI Model. starter runs sessions; store loads the history
// of a continued conversation.
func New(starter Starter, store relay.Store, theme relay.Theme, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	styles := NewStyles(theme)
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.Accent))

	m := Model{
		Input:    ti,
		spinner:  sp,
		starter:  starter,
		store:    store,
		styles:   styles,
		renderer: markdown.NewRenderer(theme),
	}
	for _, o := range opts {
		o(&m)
	}
	return m
}

// Running returns whether a response is streaming.
func (m Model) Running() bool { return m.running }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// ConversationID returns the conversation the TUI writes to. It is empty
// until the first message creates one.
func (m Model) ConversationID() string { return m.conversationID }

// Response returns the latest snapshot of the current or last session.
func (m Model) Response() relay.Response { return m.last }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	if m.conversationID != "" && m.store != nil {
		return tea.Batch(textinput.Blink, loadHistory(m.store, m.conversationID))
	}
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case HistoryMsg:
		if msg.Err != nil {
			m.err = fmt.Errorf("load conversation: %w", msg.Err)
			return m, nil
		}
		m.blocks = m.blocks[:0]
		m.shown = 0
		m = m.appendMessages(msg.Conversation.Messages)
		return m.refresh(), nil

	case SessionStartedMsg:
		return m.handleStarted(msg)

	case SnapshotMsg:
		m = m.applySnapshot(msg.Response).refresh()
		if m.session != nil {
			return m, listen(m.session, m.feed)
		}
		return m, nil

	case SessionDoneMsg:
		return m.handleDone(msg)

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	if !m.running {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := max(msg.Height-inputH-statusHeight-borderHeight, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Input.Width = msg.Width
	return m.refresh()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if !m.running {
			return m, tea.Quit
		}
		m.cancelRequested = true
		if m.session != nil {
			m.session.Cancel()
		}
		return m, nil

	case tea.KeyEnter:
		if m.running {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submit(relay.OutboundMessage{Text: text})

	case tea.KeyTab:
		m = m.toggleThinking()
		return m, nil
	}

	// Character keys go to the input only; 'j' and 'k' would otherwise
	// scroll the viewport while typing.
	if m.running {
		return m, nil
	}
	var cmds []tea.Cmd
	var cmd tea.Cmd
	if msg.Type != tea.KeyRunes {
		m.Viewport, cmd = m.Viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.Input, cmd = m.Input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submit(msg relay.OutboundMessage) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil
	m.running = true
	m.cancelRequested = false
	m.last = relay.Response{State: relay.StateIdle}
	m.feed = newFeed()

	m.turnStart = len(m.blocks)
	m.blocks = append(m.blocks, NewUserMessageBlock(msg.Text, len(msg.Images), m.styles))
	m.thinking = nil
	m.reply = nil
	m = m.refresh()

	return m, tea.Batch(
		startSession(m.starter, m.conversationID, msg, m.feed),
		m.spinner.Tick,
	)
}

func (m Model) handleStarted(msg SessionStartedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.err = msg.Err
		m.running = false
		m.feed = nil
		m.blocks = m.blocks[:m.turnStart]
		cmd := m.Input.Focus()
		return m.refresh(), cmd
	}
	m.session = msg.Session
	m.conversationID = msg.Session.ConversationID()
	if m.cancelRequested {
		m.session.Cancel()
	}
	return m, listen(m.session, m.feed)
}

func (m Model) handleDone(msg SessionDoneMsg) (tea.Model, tea.Cmd) {
	m = m.applySnapshot(msg.Response)
	m.running = false
	m.session = nil
	m.feed = nil

	if msg.Err != nil {
		m.err = fmt.Errorf("refresh conversation: %w", msg.Err)
	} else {
		m = m.reconcile(msg.Conversation.Messages)
	}
	switch msg.Response.State {
	case relay.StateError:
		m.blocks = append(m.blocks, NewErrorBlock(sanitize(msg.Response.Error), m.styles))
	case relay.StateAborted:
		m.blocks = append(m.blocks, NewAbortedBlock(m.styles))
	}
	m.thinking = nil
	m.reply = nil
	cmd := m.Input.Focus()
	return m.refresh(), cmd
}

// reconcile replaces the live turn with the persisted messages when the
// store holds the assistant's answer. Otherwise the live blocks stay.
func (m Model) reconcile(msgs []relay.Message) Model {
	if len(msgs) < m.shown {
		return m
	}
	added := msgs[m.shown:]
	persisted := false
	for _, msg := range added {
		if msg.Role == relay.RoleAssistant {
			persisted = true
			break
		}
	}
	if !persisted {
		m.shown = len(msgs)
		return m
	}
	m.blocks = m.blocks[:m.turnStart]
	return m.appendMessages(added)
}

func (m Model) appendMessages(msgs []relay.Message) Model {
	for _, msg := range msgs {
		switch msg.Role {
		case relay.RoleUser:
			m.blocks = append(m.blocks, NewUserMessageBlock(sanitize(msg.Content), len(msg.ImageIDs), m.styles))
		case relay.RoleAssistant:
			if msg.Thinking != "" {
				b := NewThinkingBlock(m.styles)
				b.SetText(sanitize(msg.Thinking), false)
				m.blocks = append(m.blocks, b)
			}
			if msg.Content != "" {
				b := NewAssistantTextBlock(m.renderer)
				b.SetText(sanitize(msg.Content))
				m.blocks = append(m.blocks, b)
			}
		}
	}
	m.shown += len(msgs)
	return m
}

// applySnapshot mirrors a snapshot into the live turn's blocks.
func (m Model) applySnapshot(r relay.Response) Model {
	m.last = r
	if r.Thinking || r.ThinkingText != "" {
		if m.thinking == nil {
			m.thinking = NewThinkingBlock(m.styles)
			m.blocks = append(m.blocks, m.thinking)
		}
		m.thinking.SetText(sanitize(r.ThinkingText), r.Thinking && !r.State.Terminal())
	}
	if r.ContentText != "" {
		if m.reply == nil {
			m.reply = NewAssistantTextBlock(m.renderer)
			m.blocks = append(m.blocks, m.reply)
		}
		m.reply.SetText(sanitize(r.ContentText))
	}
	return m
}

// toggleThinking expands or collapses the most recent reasoning block.
func (m Model) toggleThinking() Model {
	for i := len(m.blocks) - 1; i >= 0; i-- {
		if _, ok := m.blocks[i].(*ThinkingBlock); ok {
			m.blocks[i], _ = m.blocks[i].Update(ToggleMsg{})
			return m.refresh()
		}
	}
	return m
}

func (m Model) refresh() Model {
	if !m.ready {
		return m
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	return m
}

func (m Model) renderContent() string {
	var b strings.Builder
	for i, block := range m.blocks {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(block.View(m.Viewport.Width))
	}
	return b.String()
}

func (m Model) statusLine() string {
	width := m.Viewport.Width
	if m.err != nil {
		return m.styles.Error.Render(truncate("Error: "+m.err.Error(), width))
	}
	if !m.running {
		return m.styles.Muted.Render(truncate("Enter to send, Tab to show reasoning, Ctrl+C to quit", width))
	}

	prefix := m.spinner.View() + " "
	var effort string
	if m.last.ReasoningEffort != "" {
		effort = " · " + string(m.last.ReasoningEffort) + " effort"
	}
	avail := width - lipgloss.Width(prefix) - runewidth.StringWidth(effort)

	var activity string
	style := m.styles.Muted
	switch {
	case m.cancelRequested:
		activity = "Stopping..."
	case m.last.ToolCall != nil:
		activity = "Using " + sanitize(m.last.ToolCall.Name) + "..."
		style = m.styles.ToolCall
	case m.last.Thinking:
		activity = "Thinking: " + lastLine(sanitize(m.last.ThinkingText))
		style = m.styles.Thinking
	default:
		activity = "Generating..."
	}
	return prefix + style.Render(truncate(activity, avail)) + m.styles.Muted.Render(effort)
}

// lastLine returns the last non-blank line of s.
func lastLine(s string) string {
	s = strings.TrimRight(s, " \n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return s
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}
