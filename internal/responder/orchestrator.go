package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/comigor/healthchat/internal/config"
)

// Orchestrator turns the text of a user turn into the text of a reply.
type Orchestrator interface {
	Reply(ctx context.Context, text string) (string, error)
}

// OrchestratorFunc adapts a function to Orchestrator.
type OrchestratorFunc func(ctx context.Context, text string) (string, error)

// Reply calls f.
func (f OrchestratorFunc) Reply(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// RejectedError is returned by an orchestrator that received the request
// but declined to answer it.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	if e.Reason == "" {
		return "rejected by orchestrator"
	}
	return "rejected by orchestrator: " + e.Reason
}

// ErrEmptyReply is reported when an orchestrator answers with blank text.
var ErrEmptyReply = errors.New("orchestrator returned an empty reply")

// Placeholder is a local Orchestrator that answers every request with the
// same text after a delay. It honours cancellation and never touches the
// network.
type Placeholder struct {
	Delay time.Duration
	Text  string
}

// Reply waits Delay and returns Text, or the context error if ctx ends first.
func (p Placeholder) Reply(ctx context.Context, _ string) (string, error) {
	text := p.Text
	if text == "" {
		text = config.PlaceholderReply
	}

	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("placeholder reply: %w", ctx.Err())
	case <-timer.C:
		return text, nil
	}
}
