package responder

import (
	"fmt"

	"github.com/comigor/healthchat/internal/config"
	"github.com/comigor/healthchat/internal/conversation"
)

// Responder is a conversation.Responder the application can wait on and shut down.
type Responder interface {
	conversation.Responder
	Pending() int
	Close() error
}

var (
	_ Responder = (*Stub)(nil)
	_ Responder = (*Pipeline)(nil)
)

// New builds the responder selected by cfg.Mode.
func New(cfg config.ResponderConfig) (Responder, error) {
	switch cfg.Mode {
	case config.ModeStub, "":
		return NewStub(cfg.Delay, cfg.Text), nil
	case config.ModePipeline:
		return NewPipeline(Placeholder{Delay: cfg.Delay, Text: cfg.Text}, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown responder mode %q", cfg.Mode)
	}
}
