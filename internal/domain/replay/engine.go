// Package replay re-sends a captured client-to-server request through a
// live server-facing adapter and pairs it with the response that flows
// back through the normal pipeline.
//
// The engine never reads from the server adapter itself. Per the
// correlation rules, the response that answers a replayed request is
// indistinguishable from any other response, so it is captured,
// correlated, and forwarded by the pipeline's ordinary server-to-client
// loop; the replay engine only originates the request and listens, as
// a proxy.Observer, for the moment that loop reports a forwarded
// message correlated back to the replay.
package replay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/sentinel-gate/mcprelay/internal/domain/correlate"
	"github.com/sentinel-gate/mcprelay/internal/domain/proxy"
	"github.com/sentinel-gate/mcprelay/internal/domain/session"
	"github.com/sentinel-gate/mcprelay/internal/port/transport"
)

// ErrNotARequest is returned when Replay is given an envelope that is
// not a call (a notification or a response cannot be replayed).
var ErrNotARequest = errors.New("replay: envelope is not a request")

// ErrTimeout is returned when no matching response arrives before the
// deadline. The sent request and any later, unmatched response both
// remain in the session as evidence.
var ErrTimeout = errors.New("replay: deadline elapsed before a matching response arrived")

const (
	handshakeMethod         = "initialize"
	initializedNotification = "notifications/initialized"
	handshakeProtocolParams = `{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"mcprelay-replay","version":"0.1.0"}}`
)

// Result is the outcome of one Replay call.
type Result struct {
	Sent     session.ProxyMessage
	Response session.ProxyMessage // zero value when TimedOut
	TimedOut bool
	Duration time.Duration
}

// Engine replays requests against a single server-facing adapter,
// sharing the pipeline's correlation map and session store so replayed
// traffic is indistinguishable, from the session's point of view, from
// traffic captured live.
type Engine struct {
	corr   *proxy.CorrelationMap
	store  *session.Store
	server transport.Adapter

	mu      sync.Mutex
	waiters map[string]chan session.ProxyMessage // keyed by the replay's synthetic proxy id
}

// NewEngine builds a replay Engine. server must be the same adapter the
// pipeline's server-to-client loop reads from, so the paired response
// is observed; corr and store must be the pipeline's.
func NewEngine(corr *proxy.CorrelationMap, store *session.Store, server transport.Adapter) *Engine {
	return &Engine{
		corr:    corr,
		store:   store,
		server:  server,
		waiters: make(map[string]chan session.ProxyMessage),
	}
}

// Engine implements proxy.Observer so it can install itself alongside
// (or fanned out with) the pipeline's own observer and see every
// forwarded message without the pipeline knowing replay exists.
var _ proxy.Observer = (*Engine)(nil)

func (e *Engine) OnReceived(session.ProxyMessage) {}
func (e *Engine) OnHeld(session.ProxyMessage)     {}

// OnForwarded completes a pending replay wait when a server-to-client
// message correlates back to one of this engine's sent requests.
func (e *Engine) OnForwarded(msg session.ProxyMessage) {
	if msg.Direction != session.ServerToClient || msg.CorrelatedID == "" {
		return
	}
	e.mu.Lock()
	ch, ok := e.waiters[msg.CorrelatedID]
	if ok {
		delete(e.waiters, msg.CorrelatedID)
	}
	e.mu.Unlock()
	if ok {
		ch <- msg
	}
}

// Replay substitutes a fresh jsonrpc id into request (preserving method
// and params), writes it to the server adapter, and waits up to timeout
// for the paired response to arrive via OnForwarded. modified records
// whether the operator edited the envelope before replaying it.
func (e *Engine) Replay(ctx context.Context, request jsonrpc.Message, modified bool, timeout time.Duration) (Result, error) {
	req, ok := request.(*jsonrpc.Request)
	if !ok || !req.IsCall() {
		return Result{}, ErrNotARequest
	}

	freshID, err := e.freshID()
	if err != nil {
		return Result{}, err
	}
	substituted := &jsonrpc.Request{ID: freshID, Method: req.Method, Params: req.Params}

	proxyID := uuid.NewString()
	sent := session.ProxyMessage{
		ProxyID:   proxyID,
		Sequence:  e.store.NextSequence(),
		Timestamp: time.Now().UTC(),
		Direction: session.ClientToServer,
		Transport: session.Stdio,
		Raw:       substituted,
		Method:    substituted.Method,
		Modified:  modified,
	}
	if id, ok := correlate.ExtractID(substituted); ok {
		sent.JSONRPCID = id
		sent.HasJSONRPCID = true
	}
	if modified {
		sent.OriginalRaw = request
	}

	// Register (id -> proxyID) exactly as the normal forward loop would
	// for an outgoing request; the request itself never reports a
	// correlated id, only the response that answers it does.
	e.corr.Correlate(substituted, proxyID)
	e.store.Append(sent)

	ch := make(chan session.ProxyMessage, 1)
	e.mu.Lock()
	e.waiters[proxyID] = ch
	e.mu.Unlock()

	start := time.Now()
	if werr := e.server.Write(ctx, substituted); werr != nil {
		e.mu.Lock()
		delete(e.waiters, proxyID)
		e.mu.Unlock()
		return Result{Sent: sent}, fmt.Errorf("replay: write: %w", werr)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return Result{Sent: sent, Response: resp, Duration: time.Since(start)}, nil
	case <-timer.C:
		e.mu.Lock()
		delete(e.waiters, proxyID)
		e.mu.Unlock()
		return Result{Sent: sent, TimedOut: true, Duration: time.Since(start)}, ErrTimeout
	case <-ctx.Done():
		e.mu.Lock()
		delete(e.waiters, proxyID)
		e.mu.Unlock()
		return Result{Sent: sent, TimedOut: true, Duration: time.Since(start)}, ctx.Err()
	}
}

// freshID produces a jsonrpc id guaranteed not to collide with any id
// currently tracked by the correlation map.
func (e *Engine) freshID() (jsonrpc.ID, error) {
	for i := 0; i < 8; i++ {
		candidate := "replay-" + uuid.NewString()
		if e.corr.Reserve(`"` + candidate + `"`) {
			return jsonrpc.MakeID(candidate)
		}
	}
	return jsonrpc.ID{}, errors.New("replay: could not reserve a fresh jsonrpc id")
}

// Handshake sends a synthetic initialize request (waiting, best-effort,
// for its response) followed by a notifications/initialized
// notification, for replaying into a server that has not yet seen a
// real handshake on this connection.
func (e *Engine) Handshake(ctx context.Context, timeout time.Duration) error {
	seedID, err := jsonrpc.MakeID("handshake-seed")
	if err != nil {
		return fmt.Errorf("replay: handshake: %w", err)
	}
	initReq := &jsonrpc.Request{ID: seedID, Method: handshakeMethod, Params: json.RawMessage(handshakeProtocolParams)}

	if _, err := e.Replay(ctx, initReq, false, timeout); err != nil && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("replay: handshake initialize: %w", err)
	}

	notif := &jsonrpc.Request{Method: initializedNotification}
	notifMsg := session.ProxyMessage{
		ProxyID:   uuid.NewString(),
		Sequence:  e.store.NextSequence(),
		Timestamp: time.Now().UTC(),
		Direction: session.ClientToServer,
		Transport: session.Stdio,
		Raw:       notif,
		Method:    notif.Method,
	}
	e.store.Append(notifMsg)
	if err := e.server.Write(ctx, notif); err != nil {
		return fmt.Errorf("replay: handshake notification: %w", err)
	}
	return nil
}
