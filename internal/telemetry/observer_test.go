package telemetry

import (
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/sentinel-gate/mcprelay/internal/domain/session"
)

func decodeTel(t *testing.T, raw string) jsonrpc.Message {
	t.Helper()
	m, err := jsonrpc.DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	c.Collect(ch)
	close(ch)
	var total float64
	for m := range ch {
		var out dto.Metric
		if err := m.Write(&out); err != nil {
			t.Fatalf("write metric: %v", err)
		}
		if out.Counter != nil {
			total += out.Counter.GetValue()
		}
	}
	return total
}

func TestObserverFanoutRecordsMessagesAndHeldDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	fanout := NewObserverFanout(metrics, nil)

	msg := session.ProxyMessage{
		ProxyID:   "p1",
		Direction: session.ClientToServer,
		Raw:       decodeTel(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call"}`),
		Method:    "tools/call",
	}

	fanout.OnReceived(msg)
	if got := counterValue(t, metrics.MessagesTotal); got != 1 {
		t.Fatalf("MessagesTotal = %v, want 1", got)
	}

	fanout.OnHeld(msg)
	if got := counterValue(t, metrics.HeldTotal); got != 1 {
		t.Fatalf("HeldTotal = %v, want 1", got)
	}

	time.Sleep(5 * time.Millisecond)
	fanout.OnForwarded(msg)

	fanout.mu.Lock()
	_, stillTracked := fanout.heldSince["p1"]
	fanout.mu.Unlock()
	if stillTracked {
		t.Error("heldSince entry should be cleared after OnForwarded")
	}
}

func TestObserverFanoutNilMetricsIsSafe(t *testing.T) {
	fanout := NewObserverFanout(nil, nil)
	msg := session.ProxyMessage{ProxyID: "p2", Direction: session.ServerToClient}
	fanout.OnReceived(msg)
	fanout.OnHeld(msg)
	fanout.OnForwarded(msg)
}
