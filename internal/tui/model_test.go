package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

type stubChat struct {
	asked []string
	ans   domain.Answer
	err   error
}

func (s *stubChat) Ask(ctx context.Context, message string) (domain.Answer, error) {
	s.asked = append(s.asked, message)
	return s.ans, s.err
}

func typeText(m tea.Model, s string) tea.Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func ready(m tea.Model) tea.Model {
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func TestModel_AskRoundTrip(t *testing.T) {
	chat := &stubChat{ans: domain.Answer{
		Response: "Unused items can be returned within 30 days.",
		Sources:  []string{"returns.txt (Chunk 1)"},
	}}
	var m tea.Model = New(context.Background(), chat, "2 documents in store")
	m = ready(m)
	assert.Contains(t, m.View(), "No questions yet.")

	m = typeText(m, "return policy?")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Thinking...")

	m, _ = m.Update(cmd())
	assert.Equal(t, []string{"return policy?"}, chat.asked)
	view := m.View()
	assert.Contains(t, view, "You: return policy?")
	assert.Contains(t, view, "returns.txt (Chunk 1)")
	assert.Contains(t, view, "Answered from 1 source(s).")
	assert.Contains(t, view, "2 documents in store")
}

func TestModel_ErrorIsShown(t *testing.T) {
	chat := &stubChat{err: errors.New("embedding service unavailable")}
	var m tea.Model = ready(New(context.Background(), chat, ""))
	m = typeText(m, "hello")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.Contains(t, m.View(), "Error: embedding service unavailable")
}

func TestModel_EmptyInputDoesNothing(t *testing.T) {
	chat := &stubChat{}
	var m tea.Model = ready(New(context.Background(), chat, ""))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, chat.asked)
}

func TestHighlightBestSentence_KeepsText(t *testing.T) {
	text := "Shipping takes five days.\nRefunds take ten days. Thanks."
	got := highlightBestSentence(text, "how long do refunds take")
	assert.Contains(t, got, "Shipping takes five days.")
	assert.Contains(t, got, "Refunds take ten days.")
	assert.Contains(t, got, "Thanks.")

	assert.Equal(t, text, highlightBestSentence(text, ""))
	assert.Equal(t, "no terminator", highlightBestSentence("no terminator", "terminator"))
}

func TestTokenOverlapScore(t *testing.T) {
	q := toTokenSet("Refund policy")
	assert.Equal(t, 2, tokenOverlapScore(q, "The refund POLICY, refund again."))
	assert.Equal(t, 0, tokenOverlapScore(q, "Shipping times."))
}
