package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comigor/healthchat/internal/config"
	"github.com/comigor/healthchat/internal/conversation"
	"github.com/comigor/healthchat/internal/responder"
)

var testUI = config.UIConfig{
	Title:       "Healthcare AI Chat",
	Subtitle:    "CMPS 411 Capstone Project",
	Placeholder: "Type a message...",
	EmptyState:  "Welcome!",
}

func typeText(m tea.Model, text string) tea.Model {
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func press(m tea.Model, k tea.KeyType) (tea.Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: k})
}

func sized(m Model) tea.Model {
	out, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return out
}

func TestTypingUpdatesDraft(t *testing.T) {
	store := conversation.NewStore()
	m := sized(New(store, testUI, nil))

	typeText(m, "Hel")
	assert.Equal(t, "Hel", store.Draft())
}

func TestEnterSubmits(t *testing.T) {
	stub := responder.NewStub(5*time.Millisecond, "")
	store := conversation.NewStore(conversation.WithResponder(stub))
	m := sized(New(store, testUI, stub.Pending))

	m = typeText(m, "Hello")
	m, _ = press(m, tea.KeyEnter)

	require.Equal(t, 1, store.Len())
	assert.Equal(t, "Hello", store.Turns()[0].Text)
	assert.Equal(t, "", store.Draft())
	assert.Equal(t, "", m.(Model).input.Value())
	assert.Contains(t, m.View(), "You: Hello")
	assert.Contains(t, m.View(), "waiting for 1 reply")

	stub.Wait()
	m, _ = m.Update(changedMsg{})
	assert.Contains(t, m.View(), "AI: This is a placeholder response.")
	assert.NotContains(t, m.View(), "waiting for")
}

func TestEnterOnBlankKeepsInput(t *testing.T) {
	store := conversation.NewStore()
	m := sized(New(store, testUI, nil))

	m = typeText(m, "   ")
	m, _ = press(m, tea.KeyEnter)

	assert.Zero(t, store.Len())
	assert.Equal(t, "   ", store.Draft())
	assert.Equal(t, "   ", m.(Model).input.Value())
}

func TestEmptyState(t *testing.T) {
	m := sized(New(conversation.NewStore(), testUI, nil))

	view := m.View()
	assert.Contains(t, view, "Healthcare AI Chat")
	assert.Contains(t, view, "Welcome!")
}

func TestEscQuits(t *testing.T) {
	m := sized(New(conversation.NewStore(), testUI, nil))

	m, cmd := press(m, tea.KeyEsc)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestRenderTurns(t *testing.T) {
	turns := []conversation.Turn{
		{Text: "hi", Sender: conversation.SenderUser},
		{Text: "hello", Sender: conversation.SenderAI},
		{Text: "timed out", Sender: conversation.SenderError, Kind: conversation.KindRequestFailed},
	}

	out := renderTurns(turns, 80, "empty")
	userAt := strings.Index(out, "You: hi")
	aiAt := strings.Index(out, "AI: hello")
	errAt := strings.Index(out, "Error: timed out")
	require.True(t, userAt >= 0 && aiAt >= 0 && errAt >= 0, out)
	assert.Less(t, userAt, aiAt)
	assert.Less(t, aiAt, errAt)
	assert.NotContains(t, out, "empty")
}
