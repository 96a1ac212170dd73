// Package proxy implements the bidirectional message pipeline: two
// forward loops that read from one transport adapter, run each message
// through correlation, capture, observation and the intercept engine,
// and write it to the other adapter.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/sentinel-gate/mcprelay/internal/domain/correlate"
	"github.com/sentinel-gate/mcprelay/internal/domain/intercept"
	"github.com/sentinel-gate/mcprelay/internal/domain/session"
	"github.com/sentinel-gate/mcprelay/internal/port/transport"
)

// Pipeline wires a client-facing Adapter to a server-facing Adapter,
// recording every message in a session.Store and running each one
// through an intercept.Engine before forwarding.
type Pipeline struct {
	store    *session.Store
	engine   *intercept.Engine
	corr     *CorrelationMap
	observer *safeObserver
	logger   *slog.Logger
}

// New creates a Pipeline. observer may be nil (treated as NopObserver).
// logger may be nil (a discard logger is used).
func New(store *session.Store, engine *intercept.Engine, observer Observer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		store:    store,
		engine:   engine,
		corr:     NewCorrelationMap(),
		observer: newSafeObserver(observer, logger),
		logger:   logger,
	}
}

// Correlation returns the pipeline's CorrelationMap, so a replay engine
// sharing this pipeline's session can register synthetic requests in
// the same map the forward loops consult.
func (p *Pipeline) Correlation() *CorrelationMap {
	return p.corr
}

// Run proxies messages between client and server until one side's
// adapter fails or ctx is cancelled. The first direction to fail
// cancels its sibling; on the way out, every message still held by the
// intercept engine is released with Forward so no goroutine is left
// waiting, then both adapters are closed.
func (p *Pipeline) Run(ctx context.Context, client, server transport.Adapter, tr session.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.forward(ctx, client, server, session.ClientToServer, tr); err != nil && !isShutdown(err) {
			errCh <- fmt.Errorf("client->server: %w", err)
		}
		cancel()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.forward(ctx, server, client, session.ServerToClient, tr); err != nil && !isShutdown(err) {
			errCh <- fmt.Errorf("server->client: %w", err)
		}
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var runErr error
	select {
	case <-done:
	case err := <-errCh:
		runErr = err
		cancel()
		<-done
	}

	p.engine.SetMode(intercept.Passthrough) // releases any still-held messages
	_ = client.Close()
	_ = server.Close()

	return runErr
}

func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

// forward is one direction's loop: wrap, correlate, capture, announce,
// intercept, write.
func (p *Pipeline) forward(ctx context.Context, src, dst transport.Adapter, dir session.Direction, tr session.Transport) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := src.Read(ctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}

		msg := p.wrap(raw, dir, tr)
		msg.CorrelatedID = p.corr.Correlate(raw, msg.ProxyID)

		p.store.Append(msg)
		p.observer.OnReceived(msg)

		if p.engine.ShouldHold(msg) {
			held := p.engine.Hold(msg)
			p.observer.OnHeld(msg)

			decision, err := intercept.Wait(ctx, held)
			if err != nil {
				return err
			}

			switch decision.Action {
			case intercept.Drop:
				continue
			case intercept.Modify:
				msg.OriginalRaw = msg.Raw
				msg.Raw = decision.Replacement
				msg.Modified = true
				msg.Method = correlate.ExtractMethod(msg.Raw)
				p.store.Append(msg)
			case intercept.Forward:
				// msg unchanged
			}
		}

		if err := dst.Write(ctx, msg.Raw); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		p.observer.OnForwarded(msg)
	}
}

func (p *Pipeline) wrap(raw jsonrpc.Message, dir session.Direction, tr session.Transport) session.ProxyMessage {
	msg := session.ProxyMessage{
		ProxyID:   uuid.NewString(),
		Sequence:  p.store.NextSequence(),
		Direction: dir,
		Transport: tr,
		Raw:       raw,
		Method:    correlate.ExtractMethod(raw),
	}
	msg.Timestamp = time.Now().UTC()
	if id, ok := correlate.ExtractID(raw); ok {
		msg.JSONRPCID = id
		msg.HasJSONRPCID = true
	}
	return msg
}
