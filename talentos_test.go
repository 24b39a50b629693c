package main

import (
	"context"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
	"github.com/talentos/talentos/internal/stream"
)

// blockingAnalyzer streams one chunk and then waits for cancellation.
type blockingAnalyzer struct{}

func (blockingAnalyzer) Analyze(ctx context.Context, _ stream.Form, onChunk func(string)) error {
	onChunk("## Strengths")
	<-ctx.Done()
	return ctx.Err()
}

func newTestModel(t *testing.T, ctx context.Context, analyzer stream.Analyzer) *Talentos {
	t.Helper()
	cfg := &Config{Raw: true, StatusText: defaultStatusText, WordWrap: defaultWordWrap, Theme: "dark"}
	return newTalentos(ctx, cfg, analyzer, testPayload(), log.New(io.Discard))
}

// settleCmd starts the model and returns the command that waits for the exchange to settle.
func settleCmd(t *testing.T, m *Talentos) tea.Cmd {
	t.Helper()
	batch, ok := m.Init()().(tea.BatchMsg)
	require.True(t, ok)
	require.NotEmpty(t, batch)
	return batch[0]
}

func TestTalentos(t *testing.T) {
	t.Run("done", func(t *testing.T) {
		m := newTestModel(t, context.Background(), chunkAnalyzer{chunks: []string{"# Report", "\nScore: 82"}})
		msg := settleCmd(t, m)()
		require.IsType(t, settledMsg{}, msg)

		_, cmd := m.Update(msg)
		require.NotNil(t, cmd)
		require.Equal(t, doneState, m.state)
		require.Equal(t, "# Report\nScore: 82", m.Output)
		require.Empty(t, m.Failure)
		require.Empty(t, m.View())
	})

	t.Run("failure waits for the user", func(t *testing.T) {
		m := newTestModel(t, context.Background(), chunkAnalyzer{err: &stream.StatusError{StatusCode: 422, Message: "422 Unprocessable Entity: resume is empty"}})
		_, cmd := m.Update(settleCmd(t, m)())
		require.Nil(t, cmd)
		require.Equal(t, errorState, m.state)
		require.Equal(t, "422 Unprocessable Entity: resume is empty", m.Failure)
		require.Contains(t, m.View(), "resume is empty")

		_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
		require.NotNil(t, cmd)
		require.Empty(t, m.View())
		require.Equal(t, "422 Unprocessable Entity: resume is empty", m.Failure)
	})

	t.Run("stale settle is ignored", func(t *testing.T) {
		m := newTestModel(t, context.Background(), chunkAnalyzer{chunks: []string{"old"}})
		msg := settleCmd(t, m)().(settledMsg)
		msg.run--
		_, cmd := m.Update(msg)
		require.Nil(t, cmd)
		require.Equal(t, analyzingState, m.state)
	})

	t.Run("cancel keeps partial report", func(t *testing.T) {
		m := newTestModel(t, context.Background(), blockingAnalyzer{})
		settle := settleCmd(t, m)
		done := make(chan tea.Msg, 1)
		go func() { done <- settle() }()

		require.Eventually(t, func() bool {
			return m.session.State().Content == "## Strengths"
		}, time.Second, 5*time.Millisecond)

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		require.Equal(t, cancelledState, m.state)
		require.Equal(t, "## Strengths", m.Output)

		select {
		case msg := <-done:
			_, cmd = m.Update(msg)
			require.Nil(t, cmd)
			require.Equal(t, cancelledState, m.state)
			require.Empty(t, m.Failure)
		case <-time.After(time.Second):
			t.Fatal("analysis did not stop after cancel")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		t.Cleanup(cancel)
		m := newTestModel(t, ctx, blockingAnalyzer{})
		_, cmd := m.Update(settleCmd(t, m)())
		require.NotNil(t, cmd)
		require.True(t, m.TimedOut)
		require.Equal(t, cancelledState, m.state)
		require.Equal(t, "## Strengths", m.Output)
		require.Empty(t, m.Failure)
	})

	t.Run("streaming view", func(t *testing.T) {
		m := newTestModel(t, context.Background(), chunkAnalyzer{})
		m.state = analyzingState
		m.Update(tea.WindowSizeMsg{Width: 80, Height: 3})
		m.Update(contentMsg{stream.State{Content: "a\nb\nc\nd", Active: true}})
		require.Equal(t, "c\nd", m.View())
	})

	t.Run("markdown renders are throttled", func(t *testing.T) {
		m := newTestModel(t, context.Background(), chunkAnalyzer{})
		m.Config.Raw = false
		m.renderGap = time.Hour
		m.state = analyzingState

		_, cmd := m.Update(contentMsg{stream.State{Content: "Strengths", Active: true}})
		require.NotNil(t, cmd)
		require.False(t, m.pending)
		require.Contains(t, m.rendered, "Strengths")

		m.Update(contentMsg{stream.State{Content: "Strengths\n\nGaps", Active: true}})
		require.Equal(t, "Strengths\n\nGaps", m.Output)
		require.True(t, m.pending)
		require.True(t, m.dirty)
		require.NotContains(t, m.rendered, "Gaps")

		m.Update(contentMsg{stream.State{Content: "Strengths\n\nGaps\n\nScore", Active: true}})
		require.True(t, m.pending)
		require.NotContains(t, m.rendered, "Score")

		m.Update(renderMsg{})
		require.False(t, m.pending)
		require.False(t, m.dirty)
		require.Contains(t, m.rendered, "Gaps")
		require.Contains(t, m.rendered, "Score")
	})

	t.Run("settle renders the final report", func(t *testing.T) {
		m := newTestModel(t, context.Background(), chunkAnalyzer{})
		m.Config.Raw = false
		m.renderGap = time.Hour
		m.state = analyzingState
		m.run = 1
		m.Update(contentMsg{stream.State{Content: "Strengths", Active: true}})
		m.Update(contentMsg{stream.State{Content: "Strengths\n\nGaps", Active: true}})
		require.NotContains(t, m.rendered, "Gaps")

		m.Update(settledMsg{run: 1, state: stream.State{Content: "Strengths\n\nGaps"}})
		require.Equal(t, doneState, m.state)
		require.Contains(t, m.rendered, "Gaps")
	})

	t.Run("quiet", func(t *testing.T) {
		m := newTestModel(t, context.Background(), chunkAnalyzer{})
		m.Config.Quiet = true
		m.state = analyzingState
		require.Empty(t, m.View())
	})
}

func TestLatest(t *testing.T) {
	ch := make(chan stream.State, 1)
	push := latest(ch)
	push(stream.State{Content: "a"})
	push(stream.State{Content: "ab"})
	push(stream.State{Content: "abc"})
	require.Equal(t, "abc", (<-ch).Content)
	require.Empty(t, ch)
}

func TestTail(t *testing.T) {
	require.Equal(t, "x\ny", tail("x\ny\n", 5))
	require.Equal(t, "y\nz", tail("x\ny\nz", 2))
	require.Equal(t, "x\ny", tail("x\ny", 0))
}

func TestMarkdownStyle(t *testing.T) {
	require.Equal(t, "dracula", markdownStyle("dracula"))
	require.Contains(t, []string{"dark", "light"}, markdownStyle("auto"))
}
