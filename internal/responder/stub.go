// Package responder produces AI turns for the conversation store.
//
// Stub answers every user turn with a fixed placeholder after a delay.
// Pipeline is the seam for a real orchestrator: it runs cancellable
// requests, applies replies in request order and turns failures into
// error turns.
package responder

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/comigor/healthchat/internal/config"
	"github.com/comigor/healthchat/internal/conversation"
	"github.com/comigor/healthchat/internal/logger"
)

// DefaultDelay is how long the stub waits before answering.
const DefaultDelay = 500 * time.Millisecond

// Stub schedules one placeholder reply per user turn. Timers are
// fire-and-forget: they are neither de-duplicated nor cancelled.
type Stub struct {
	Delay time.Duration
	Text  string

	pending atomic.Int64
	wg      sync.WaitGroup
}

// NewStub returns a stub with the given delay and reply text. A blank text
// falls back to the standard placeholder.
func NewStub(delay time.Duration, text string) *Stub {
	if text == "" {
		text = config.PlaceholderReply
	}
	return &Stub{Delay: delay, Text: text}
}

// OnUserTurn schedules the reply and returns immediately.
func (s *Stub) OnUserTurn(turn conversation.Turn, sink conversation.Sink) {
	s.pending.Add(1)
	s.wg.Add(1)
	time.AfterFunc(s.Delay, func() {
		defer s.wg.Done()
		defer s.pending.Add(-1)

		reply, err := sink.AppendTurn(conversation.Turn{Text: s.Text, Sender: conversation.SenderAI})
		if err != nil {
			logger.L.Error("stub reply rejected by store", "replyTo", turn.Seq, "error", err)
			return
		}
		logger.L.Debug("stub reply delivered", "replyTo", turn.Seq, "seq", reply.Seq)
	})
}

// Pending reports how many replies are scheduled but not yet delivered.
func (s *Stub) Pending() int {
	return int(s.pending.Load())
}

// Wait blocks until every scheduled reply has been delivered.
func (s *Stub) Wait() {
	s.wg.Wait()
}

// Close waits for outstanding replies; the stub has nothing to cancel.
func (s *Stub) Close() error {
	s.Wait()
	return nil
}
