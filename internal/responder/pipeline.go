package responder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/stateless"

	"github.com/comigor/healthchat/internal/conversation"
	"github.com/comigor/healthchat/internal/logger"
)

// DefaultTimeout bounds a single orchestrator request.
const DefaultTimeout = 30 * time.Second

// ErrClosed is logged for user turns that arrive after Close.
var ErrClosed = errors.New("responder closed")

// Request states
type requestState string

const (
	statePending   requestState = "Pending"
	stateAnswered  requestState = "Answered"
	stateFailed    requestState = "Failed"
	stateCancelled requestState = "Cancelled" // terminal
	stateApplied   requestState = "Applied"   // terminal
)

// Request triggers
type requestTrigger string

const (
	triggerAnswer requestTrigger = "Answer"
	triggerFail   requestTrigger = "Fail"
	triggerCancel requestTrigger = "Cancel"
	triggerApply  requestTrigger = "Apply"
)

type request struct {
	turn  conversation.Turn
	sink  conversation.Sink
	fsm   *stateless.StateMachine
	reply conversation.Turn
}

func newRequest(turn conversation.Turn, sink conversation.Sink) *request {
	fsm := stateless.NewStateMachine(statePending)

	fsm.Configure(statePending).
		Permit(triggerAnswer, stateAnswered).
		Permit(triggerFail, stateFailed).
		Permit(triggerCancel, stateCancelled)

	// Answered and Failed both carry a turn waiting for its predecessors.
	fsm.Configure(stateAnswered).
		Permit(triggerApply, stateApplied).
		Permit(triggerCancel, stateCancelled)
	fsm.Configure(stateFailed).
		Permit(triggerApply, stateApplied).
		Permit(triggerCancel, stateCancelled)

	fsm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.L.Debug("reply request transition", "replyTo", turn.Seq, "from", t.Source, "to", t.Destination, "trigger", t.Trigger)
	})

	return &request{turn: turn, sink: sink, fsm: fsm}
}

func (r *request) state() requestState {
	return r.fsm.MustState().(requestState)
}

func (r *request) settled() bool {
	switch r.state() {
	case stateAnswered, stateFailed:
		return true
	}
	return false
}

// Pipeline answers user turns through an Orchestrator.
//
// Every user turn starts its own request, tagged with the turn's position.
// Replies are appended in that order no matter when each request finishes.
// A failed request becomes an error turn. Close cancels whatever is still
// outstanding; cancelled requests never append.
type Pipeline struct {
	orch    Orchestrator
	timeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	// applyMu serialises draining so replies reach the sink in order.
	applyMu sync.Mutex
	mu      sync.Mutex
	queue   []*request
	closed  bool
	wg      sync.WaitGroup
}

// NewPipeline builds a pipeline over orch. A non-positive timeout selects
// DefaultTimeout.
func NewPipeline(orch Orchestrator, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		orch:    orch,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnUserTurn starts a request for turn and returns immediately.
func (p *Pipeline) OnUserTurn(turn conversation.Turn, sink conversation.Sink) {
	req := newRequest(turn, sink)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		logger.L.Warn("dropping user turn", "seq", turn.Seq, "error", ErrClosed)
		return
	}
	// Keep the queue ordered by position even if two submits race.
	i := sort.Search(len(p.queue), func(i int) bool { return p.queue[i].turn.Seq > turn.Seq })
	p.queue = append(p.queue, nil)
	copy(p.queue[i+1:], p.queue[i:])
	p.queue[i] = req
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(req)
}

func (p *Pipeline) run(req *request) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(p.ctx, p.timeout)
	text, err := p.orch.Reply(ctx, req.turn.Text)
	cancel()

	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyReply
	}
	p.settle(req, text, err)
}

func (p *Pipeline) settle(req *request, text string, replyErr error) {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()

	p.mu.Lock()
	if req.state() != statePending {
		// Cancelled by Close while the orchestrator was working.
		p.mu.Unlock()
		return
	}

	switch {
	case replyErr == nil:
		req.reply = conversation.Turn{Text: text, Sender: conversation.SenderAI}
		p.fire(req, triggerAnswer)
	case p.ctx.Err() != nil:
		p.fire(req, triggerCancel)
	default:
		req.reply = failureTurn(replyErr)
		logger.L.Warn("orchestrator request failed", "replyTo", req.turn.Seq, "kind", req.reply.Kind, "error", replyErr)
		p.fire(req, triggerFail)
	}

	ready := p.drainLocked()
	p.mu.Unlock()

	for _, r := range ready {
		if _, err := r.sink.AppendTurn(r.reply); err != nil {
			logger.L.Error("reply rejected by store", "replyTo", r.turn.Seq, "error", err)
		}
	}
}

// drainLocked pops settled requests off the head of the queue.
func (p *Pipeline) drainLocked() []*request {
	var ready []*request
	for len(p.queue) > 0 {
		head := p.queue[0]
		switch {
		case head.state() == stateCancelled:
		case head.settled():
			p.fire(head, triggerApply)
			ready = append(ready, head)
		default:
			return ready
		}
		p.queue = p.queue[1:]
	}
	return ready
}

func (p *Pipeline) fire(req *request, trigger requestTrigger) {
	if err := req.fsm.Fire(trigger); err != nil {
		logger.L.Error("reply request fsm error", "replyTo", req.turn.Seq, "trigger", trigger, "error", err)
	}
}

// Pending reports how many requests have not been applied or cancelled.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Close cancels every outstanding request and waits for the workers to exit.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.cancel()
	for _, req := range p.queue {
		p.fire(req, triggerCancel)
	}
	p.queue = nil
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

func failureTurn(err error) conversation.Turn {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		msg := "The orchestrator declined this request."
		if rejected.Reason != "" {
			msg = fmt.Sprintf("The orchestrator declined this request: %s", rejected.Reason)
		}
		return conversation.ErrorTurn(conversation.KindRejected, msg)
	}
	return conversation.ErrorTurn(conversation.KindRequestFailed, fmt.Sprintf("The reply could not be generated: %v", err))
}
