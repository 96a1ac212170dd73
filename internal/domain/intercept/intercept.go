// Package intercept implements the hold/release state machine that lets
// an operator pause a message in flight, inspect or edit it, and then
// decide its fate.
package intercept

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/sentinel-gate/mcprelay/internal/domain/session"
)

// Mode controls whether the pipeline holds messages for operator review.
type Mode int

const (
	// Passthrough forwards every message without holding it.
	Passthrough Mode = iota
	// Intercepting holds every message that ShouldHold selects.
	Intercepting
)

// Action is the operator's decision for a held message.
type Action int

const (
	// Forward releases the message unchanged.
	Forward Action = iota
	// Modify releases a replacement envelope in place of the original.
	Modify
	// Drop releases nothing; the message is discarded.
	Drop
)

// ErrInvalidAction is returned when Release is given a Modify action
// with no replacement envelope.
var ErrInvalidAction = errors.New("intercept: modify action requires a replacement envelope")

// ErrAlreadyReleased is returned by Release when the held message has
// already been released (by the operator or by a mode switch).
var ErrAlreadyReleased = errors.New("intercept: message already released")

// Decision is what Release hands to the waiting pipeline goroutine: the
// action to take and, for Modify, the replacement envelope. Combining
// both into a single value sent exactly once over a channel avoids the
// ordering hazard of setting an action field and firing a separate
// signal as two steps.
type Decision struct {
	Action      Action
	Replacement jsonrpc.Message
}

// Held is a message paused in the pipeline awaiting an operator decision.
type Held struct {
	Message session.ProxyMessage

	mu       sync.Mutex
	released bool
	resultCh chan Decision
}

// Decisions returns the channel the holder of this Held should receive
// from exactly once to learn the operator's decision.
func (h *Held) Decisions() <-chan Decision {
	return h.resultCh
}

func newHeld(msg session.ProxyMessage) *Held {
	return &Held{
		Message:  msg,
		resultCh: make(chan Decision, 1),
	}
}

func (h *Held) release(d Decision) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrAlreadyReleased
	}
	h.released = true
	h.resultCh <- d
	close(h.resultCh)
	return nil
}

// Engine is the intercept mode state machine. It is safe for concurrent
// use: the pipeline's forward loops call ShouldHold/Hold, and the
// operator-facing controller calls SetMode/Release/Held/concurrently.
type Engine struct {
	mu      sync.Mutex
	mode    Mode
	held    map[string]*Held // proxy id -> Held
	pending []string         // insertion order, for a stable Held() listing
}

// NewEngine creates an Engine starting in Passthrough mode.
func NewEngine() *Engine {
	return &Engine{
		mode: Passthrough,
		held: make(map[string]*Held),
	}
}

// SetMode changes the operating mode. Switching to Passthrough releases
// every currently held message with action Forward, so any pipeline
// goroutine blocked on a release signal unblocks.
func (e *Engine) SetMode(mode Mode) {
	e.mu.Lock()
	if mode == Passthrough {
		ids := e.pending
		e.pending = nil
		held := e.held
		e.held = make(map[string]*Held)
		e.mode = mode
		e.mu.Unlock()
		for _, id := range ids {
			if h, ok := held[id]; ok {
				_ = h.release(Decision{Action: Forward})
			}
		}
		return
	}
	e.mode = mode
	e.mu.Unlock()
}

// ModeNow returns the current mode.
func (e *Engine) ModeNow() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// ShouldHold reports whether a message arriving right now would be held.
// It does not itself hold anything; callers check this before deciding
// to call Hold, so a Passthrough-mode pipeline never pays for a
// hold/release round trip.
func (e *Engine) ShouldHold(msg session.ProxyMessage) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode == Intercepting
}

// Hold registers msg as held and returns the Held record the caller
// must wait on. If the engine switches to Passthrough (or Release is
// called) before the caller receives, the wait still completes because
// the decision is buffered.
func (e *Engine) Hold(msg session.ProxyMessage) *Held {
	h := newHeld(msg)
	e.mu.Lock()
	e.held[msg.ProxyID] = h
	e.pending = append(e.pending, msg.ProxyID)
	e.mu.Unlock()
	return h
}

// Release resolves a held message by proxy id. Releasing with Modify
// and a nil replacement is rejected with ErrInvalidAction. Releasing a
// message that is not currently held, or was already released, is
// reported as an error without side effects.
func (e *Engine) Release(proxyID string, d Decision) error {
	if d.Action == Modify && d.Replacement == nil {
		return ErrInvalidAction
	}

	e.mu.Lock()
	h, ok := e.held[proxyID]
	if ok {
		delete(e.held, proxyID)
		for i, id := range e.pending {
			if id == proxyID {
				e.pending = append(e.pending[:i], e.pending[i+1:]...)
				break
			}
		}
	}
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("intercept: no held message with id %s", proxyID)
	}
	return h.release(d)
}

// Held returns the messages currently paused, in hold order.
func (e *Engine) Held() []session.ProxyMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]session.ProxyMessage, 0, len(e.pending))
	for _, id := range e.pending {
		if h, ok := e.held[id]; ok {
			out = append(out, h.Message)
		}
	}
	return out
}

// Wait blocks until h is released or ctx is cancelled, returning the
// decision or a context error.
func Wait(ctx context.Context, h *Held) (Decision, error) {
	select {
	case d := <-h.Decisions():
		return d, nil
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}
