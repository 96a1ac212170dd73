package proxy

import (
	"log/slog"

	"github.com/sentinel-gate/mcprelay/internal/domain/session"
)

// Observer is notified of every message event the pipeline produces.
// Implementations are invoked synchronously on the forward-loop
// goroutine that owns the message; a slow or blocking Observer will
// slow down that direction's forwarding.
//
// A panic inside any Observer method is recovered by the pipeline and
// logged — it must never bring down message forwarding.
type Observer interface {
	// OnReceived fires once a message has been read, correlated, and
	// recorded in the session store, before any intercept decision.
	OnReceived(msg session.ProxyMessage)
	// OnHeld fires when the intercept engine paused the message for
	// operator review.
	OnHeld(msg session.ProxyMessage)
	// OnForwarded fires after a message (forwarded unchanged or modified)
	// has been written to its destination. It does not fire for dropped
	// messages.
	OnForwarded(msg session.ProxyMessage)
}

// NopObserver implements Observer with no-ops, for callers that only
// want the session store's own record of events.
type NopObserver struct{}

func (NopObserver) OnReceived(session.ProxyMessage)  {}
func (NopObserver) OnHeld(session.ProxyMessage)      {}
func (NopObserver) OnForwarded(session.ProxyMessage) {}

var _ Observer = NopObserver{}

// safeObserver wraps an Observer so a panicking callback is recovered,
// logged, and never propagates into the forward loop.
type safeObserver struct {
	next   Observer
	logger *slog.Logger
}

func newSafeObserver(next Observer, logger *slog.Logger) *safeObserver {
	if next == nil {
		next = NopObserver{}
	}
	return &safeObserver{next: next, logger: logger}
}

func (s *safeObserver) call(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			if s.logger != nil {
				s.logger.Error("observer callback panicked", "callback", name, "panic", r)
			}
		}
	}()
	fn()
}

func (s *safeObserver) OnReceived(msg session.ProxyMessage) {
	s.call("OnReceived", func() { s.next.OnReceived(msg) })
}

func (s *safeObserver) OnHeld(msg session.ProxyMessage) {
	s.call("OnHeld", func() { s.next.OnHeld(msg) })
}

func (s *safeObserver) OnForwarded(msg session.ProxyMessage) {
	s.call("OnForwarded", func() { s.next.OnForwarded(msg) })
}
