// Package tui provides the Bubble Tea chat screen.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/comigor/healthchat/internal/config"
	"github.com/comigor/healthchat/internal/conversation"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	aiStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42")).
		Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	textStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	inputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)
)

// chromeHeight is the number of rows taken by header, input box and status line.
const chromeHeight = 8

// changedMsg tells the model the store was mutated outside Update.
type changedMsg struct{}

// Model is the chat screen. All conversation state lives in the store; the
// model only mirrors the text input into the draft.
type Model struct {
	store   *conversation.Store
	ui      config.UIConfig
	pending func() int

	input    textinput.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int
	quitting bool
}

// New creates the chat screen for store. pending may be nil; when set it
// reports outstanding replies for the status line.
func New(store *conversation.Store, ui config.UIConfig, pending func() int) Model {
	ti := textinput.New()
	ti.Placeholder = ui.Placeholder
	ti.Prompt = "> "
	ti.CharLimit = 0
	ti.SetValue(store.Draft())
	ti.Focus()

	return Model{
		store:    store,
		ui:       ui,
		pending:  pending,
		input:    ti,
		viewport: viewport.New(80, 20),
		width:    80,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter", "ctrl+s":
			if m.store.Submit(m.input.Value()) {
				m.input.SetValue("")
			}
			m.refresh()
			return m, nil
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = max(msg.Width-8, 10)
		m.ready = true
		m.refresh()
		return m, nil

	case changedMsg:
		m.refresh()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.store.SetDraft(after)
	}
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(renderTurns(m.store.Turns(), m.viewport.Width, m.ui.EmptyState))
	m.viewport.GotoBottom()
}

// View renders the screen
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.ui.Title))
	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render(m.ui.Subtitle))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(inputBorderStyle.Width(max(m.width-2, 10)).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(m.status()))
	return b.String()
}

func (m Model) status() string {
	status := "enter send • pgup/pgdown scroll • esc quit"
	if m.pending != nil {
		if n := m.pending(); n > 0 {
			status = fmt.Sprintf("waiting for %d %s • %s", n, plural(n, "reply", "replies"), status)
		}
	}
	return status
}

// renderTurns lays out the conversation oldest first, or the empty state.
func renderTurns(turns []conversation.Turn, width int, emptyState string) string {
	if len(turns) == 0 {
		return emptyStyle.Render(emptyState)
	}

	wrap := textStyle.Width(max(width-2, 10))
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		label := labelStyle(t.Sender).Render(t.Sender.Label() + ":")
		lines = append(lines, wrap.Render(label+" "+t.Text))
	}
	return strings.Join(lines, "\n")
}

func labelStyle(s conversation.Sender) lipgloss.Style {
	switch s {
	case conversation.SenderUser:
		return userStyle
	case conversation.SenderError:
		return errorStyle
	default:
		return aiStyle
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Run shows the chat screen until the user quits or ctx is cancelled.
func Run(ctx context.Context, store *conversation.Store, ui config.UIConfig, pending func() int) error {
	p := tea.NewProgram(New(store, ui, pending), tea.WithAltScreen(), tea.WithContext(ctx))

	// Replies land from timer goroutines; Send must not block the appender.
	store.OnChange(func(conversation.Snapshot) {
		go p.Send(changedMsg{})
	})

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat screen: %w", err)
	}
	return nil
}
