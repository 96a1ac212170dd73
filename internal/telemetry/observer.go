package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/sentinel-gate/mcprelay/internal/domain/correlate"
	"github.com/sentinel-gate/mcprelay/internal/domain/proxy"
	"github.com/sentinel-gate/mcprelay/internal/domain/session"
)

// ObserverFanout is a proxy.Observer that records Prometheus metrics
// and emits one OTel span per forwarded message.
type ObserverFanout struct {
	metrics *Metrics
	tracer  *Tracer

	mu        sync.Mutex
	heldSince map[string]time.Time // ProxyID -> time OnHeld fired
}

// NewObserverFanout builds an ObserverFanout. Either metrics or tracer
// may be nil to disable that half of the fan-out.
func NewObserverFanout(metrics *Metrics, tracer *Tracer) *ObserverFanout {
	return &ObserverFanout{
		metrics:   metrics,
		tracer:    tracer,
		heldSince: make(map[string]time.Time),
	}
}

var _ proxy.Observer = (*ObserverFanout)(nil)

func (o *ObserverFanout) OnReceived(msg session.ProxyMessage) {
	if o.metrics == nil {
		return
	}
	kind := correlate.Classify(msg.Raw).String()
	o.metrics.MessagesTotal.WithLabelValues(string(msg.Direction), kind).Inc()
}

func (o *ObserverFanout) OnHeld(msg session.ProxyMessage) {
	if o.metrics == nil {
		return
	}
	o.metrics.HeldTotal.Inc()
	o.mu.Lock()
	o.heldSince[msg.ProxyID] = time.Now()
	o.mu.Unlock()
}

// OnForwarded records the held-duration histogram when the message was
// previously held, and emits its forwarding span. A message that was
// held then dropped never calls OnForwarded, so its heldSince entry is
// never cleared; this is a bounded leak (one entry per dropped message,
// for the life of the process) traded for not needing a fourth,
// drop-specific observer hook.
func (o *ObserverFanout) OnForwarded(msg session.ProxyMessage) {
	o.mu.Lock()
	since, wasHeld := o.heldSince[msg.ProxyID]
	if wasHeld {
		delete(o.heldSince, msg.ProxyID)
	}
	o.mu.Unlock()

	if wasHeld && o.metrics != nil {
		o.metrics.HeldDuration.Observe(time.Since(since).Seconds())
	}

	if o.tracer != nil {
		o.tracer.SpanForMessage(context.Background(), string(msg.Direction), msg.Method, msg.ProxyID, msg.Modified)
	}
}
