package conversation

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyTurn is returned when a turn's text is blank after trimming.
var ErrEmptyTurn = errors.New("turn text is empty")

// Sender identifies who produced a turn.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAI    Sender = "ai"
	SenderError Sender = "error"
)

// Label is the name shown next to a turn on the chat surfaces.
func (s Sender) Label() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderAI:
		return "AI"
	case SenderError:
		return "Error"
	default:
		return string(s)
	}
}

// ErrorKind classifies error turns.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindRequestFailed ErrorKind = "request_failed"
	KindRejected      ErrorKind = "rejected_by_orchestrator"
)

// Turn is one message of the conversation. Values are never mutated after
// the store appends them.
type Turn struct {
	ID        string    `json:"id"`
	Seq       int       `json:"seq"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Kind      ErrorKind `json:"kind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewTurn builds a turn, rejecting blank text. The text itself is kept verbatim.
func NewTurn(text string, sender Sender) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyTurn
	}
	return Turn{Text: text, Sender: sender}, nil
}

// ErrorTurn builds a turn that surfaces a failed reply in the conversation.
func ErrorTurn(kind ErrorKind, text string) Turn {
	if strings.TrimSpace(text) == "" {
		text = string(kind)
	}
	return Turn{Text: text, Sender: SenderError, Kind: kind}
}
