// Package transport defines the boundary between the proxy core and
// whatever carries JSON-RPC bytes on the wire. The core only ever sees
// decoded envelopes; adapters own framing, decoding, and encoding.
package transport

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Adapter is one endpoint of a proxied connection: either the
// client-facing side or the server-facing side. The pipeline reads from
// one Adapter and writes what it decides to forward to the other.
//
// A decode failure is folded into a TransportError by the adapter
// rather than surfaced as a distinct error type — the pipeline never
// inspects raw bytes, so a message it cannot parse is, from its
// perspective, indistinguishable from a transport fault.
type Adapter interface {
	// Read blocks for the next message. It returns an error when the
	// underlying connection is closed, broken, or produced bytes that
	// could not be decoded as a JSON-RPC envelope.
	Read(ctx context.Context) (jsonrpc.Message, error)

	// Write sends a message to the peer.
	Write(ctx context.Context, msg jsonrpc.Message) error

	// Close releases the adapter's resources. Safe to call more than once.
	Close() error
}
