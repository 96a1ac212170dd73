package proxy

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.uber.org/goleak"

	"github.com/sentinel-gate/mcprelay/internal/domain/intercept"
	"github.com/sentinel-gate/mcprelay/internal/domain/session"
)

// memAdapter is an in-memory transport.Adapter backed by a channel,
// used to drive the pipeline in tests without real I/O.
type memAdapter struct {
	in     chan jsonrpc.Message
	out    chan jsonrpc.Message
	mu     sync.Mutex
	closed bool
}

func newMemAdapter() *memAdapter {
	return &memAdapter{in: make(chan jsonrpc.Message, 16), out: make(chan jsonrpc.Message, 16)}
}

func (a *memAdapter) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case m, ok := <-a.in:
		if !ok {
			return nil, context.Canceled
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *memAdapter) Write(ctx context.Context, msg jsonrpc.Message) error {
	select {
	case a.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *memAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		a.closed = true
		close(a.in)
	}
	return nil
}

func decodeP(t *testing.T, raw string) jsonrpc.Message {
	t.Helper()
	m, err := jsonrpc.DecodeMessage([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return m
}

func TestPipelinePassthroughForwardsBothDirections(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.New("s1", session.Stdio)
	engine := intercept.NewEngine()
	p := New(store, engine, nil, nil)

	client := newMemAdapter()
	server := newMemAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, client, server, session.Stdio) }()

	client.in <- decodeP(t, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)

	select {
	case got := <-server.out:
		req, ok := got.(*jsonrpc.Request)
		if !ok || req.Method != "tools/list" {
			t.Fatalf("server got %#v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive forwarded request")
	}

	server.in <- decodeP(t, `{"jsonrpc":"2.0","id":1,"result":{"tools":[]}}`)

	select {
	case got := <-client.out:
		if _, ok := got.(*jsonrpc.Response); !ok {
			t.Fatalf("client got %#v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client to receive forwarded response")
	}

	msgs := store.Messages()
	if len(msgs) != 2 {
		t.Fatalf("store has %d messages, want 2", len(msgs))
	}
	if msgs[1].CorrelatedID != msgs[0].ProxyID {
		t.Errorf("response CorrelatedID = %q, want %q", msgs[1].CorrelatedID, msgs[0].ProxyID)
	}

	cancel()
	server.Close()
	<-done
}

func TestPipelineHoldAndModify(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := session.New("s2", session.Stdio)
	engine := intercept.NewEngine()
	engine.SetMode(intercept.Intercepting)
	p := New(store, engine, nil, nil)

	client := newMemAdapter()
	server := newMemAdapter()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, client, server, session.Stdio) }()

	client.in <- decodeP(t, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"a"}}`)

	var heldID string
	deadline := time.After(2 * time.Second)
	for heldID == "" {
		select {
		case <-deadline:
			t.Fatal("message never appeared held")
		default:
			held := engine.Held()
			if len(held) == 1 {
				heldID = held[0].ProxyID
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	replacement := decodeP(t, `{"jsonrpc":"2.0","id":5,"method":"tools/call","params":{"name":"b"}}`)
	if err := engine.Release(heldID, intercept.Decision{Action: intercept.Modify, Replacement: replacement}); err != nil {
		t.Fatalf("Release: %v", err)
	}

	select {
	case got := <-server.out:
		req := got.(*jsonrpc.Request)
		var params map[string]any
		_ = json.Unmarshal(req.Params, &params)
		if params["name"] != "b" {
			t.Fatalf("server saw params %v, want modified name b", params)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for modified message")
	}

	msgs := store.Messages()
	if !msgs[0].Modified {
		t.Error("stored message should be marked Modified")
	}

	cancel()
	server.Close()
	<-done
}
