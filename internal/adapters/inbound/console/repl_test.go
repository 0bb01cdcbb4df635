package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/cleitonmarx/epm-copilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedOrchestrator struct {
	answers  map[string]string
	err      error
	messages []string
}

func (s *scriptedOrchestrator) Execute(_ context.Context, _ *domain.Conversation, userMessage string) (string, error) {
	s.messages = append(s.messages, userMessage)
	if s.err != nil {
		return "", s.err
	}
	return s.answers[userMessage], nil
}

func runREPL(t *testing.T, input string, orchestrator *scriptedOrchestrator) string {
	t.Helper()
	out := &bytes.Buffer{}
	repl := &REPL{
		Enabled:      true,
		Logger:       log.New(io.Discard, "", 0),
		Orchestrator: orchestrator,
		in:           strings.NewReader(input),
		out:          out,
	}
	require.NoError(t, repl.Run(context.Background()))
	return out.String()
}

func TestREPL_AnswersAndExits(t *testing.T) {
	orchestrator := &scriptedOrchestrator{answers: map[string]string{
		"list backups": "You have 5 backups.",
	}}

	out := runREPL(t, "list backups\nexit\n", orchestrator)

	assert.Contains(t, out, "Copilot> You have 5 backups.")
	assert.Equal(t, []string{"list backups"}, orchestrator.messages)
}

func TestREPL_SkipsEmptyLinesAndQuits(t *testing.T) {
	orchestrator := &scriptedOrchestrator{}

	runREPL(t, "\n   \nQUIT\n", orchestrator)

	assert.Empty(t, orchestrator.messages)
}

func TestREPL_PrintsErrorsInBand(t *testing.T) {
	orchestrator := &scriptedOrchestrator{err: errors.New("overloaded")}

	out := runREPL(t, "hello\nexit\n", orchestrator)

	assert.Contains(t, out, "error: overloaded")
}

func TestREPL_EmptyAnswerStillPrints(t *testing.T) {
	orchestrator := &scriptedOrchestrator{}

	out := runREPL(t, "hello\n", orchestrator)

	assert.Contains(t, out, "Copilot> (no answer)")
}

func TestREPL_DisabledWaitsForShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	repl := &REPL{Enabled: false}

	done := make(chan error, 1)
	go func() { done <- repl.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("disabled REPL did not stop on cancellation")
	}
}
