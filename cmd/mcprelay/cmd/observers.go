package cmd

import (
	"github.com/sentinel-gate/mcprelay/internal/domain/proxy"
	"github.com/sentinel-gate/mcprelay/internal/domain/session"
)

// multiObserver fans pipeline events out to any number of proxy.Observer
// implementations. It exists here, not in the proxy package, because
// which observers are active (telemetry, replay) is a wiring decision
// the CLI makes, not something the pipeline itself needs to know about.
type multiObserver struct {
	observers []proxy.Observer
}

func (m *multiObserver) Add(o proxy.Observer) {
	m.observers = append(m.observers, o)
}

func (m *multiObserver) OnReceived(msg session.ProxyMessage) {
	for _, o := range m.observers {
		o.OnReceived(msg)
	}
}

func (m *multiObserver) OnHeld(msg session.ProxyMessage) {
	for _, o := range m.observers {
		o.OnHeld(msg)
	}
}

func (m *multiObserver) OnForwarded(msg session.ProxyMessage) {
	for _, o := range m.observers {
		o.OnForwarded(msg)
	}
}

var _ proxy.Observer = (*multiObserver)(nil)
