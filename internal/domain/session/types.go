// Package session holds the captured-traffic data model: individual
// proxied messages, the ordered in-memory store that accumulates them
// for one proxy run, and the durable JSON document a session is saved
// to and loaded from.
package session

import (
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Direction indicates which way a message is flowing through the proxy.
type Direction string

const (
	// ClientToServer is a message originated by the client, bound for the server.
	ClientToServer Direction = "client_to_server"
	// ServerToClient is a message originated by the server, bound for the client.
	ServerToClient Direction = "server_to_client"
)

// Transport names the wire transport a message (or a whole session) was
// carried over. Only Stdio is implemented by a shipped adapter; the
// other values identify sessions captured by adapters outside this module.
type Transport string

const (
	// Stdio is newline-delimited JSON over a subprocess's stdin/stdout.
	Stdio Transport = "stdio"
	// SSE is Server-Sent Events transport, not implemented in this module.
	SSE Transport = "sse"
	// StreamableHTTP is the streamable-HTTP transport, not implemented in this module.
	StreamableHTTP Transport = "streamable_http"
)

// ProxyMessage is one message observed flowing through the pipeline,
// enriched with proxy-assigned metadata.
type ProxyMessage struct {
	// ProxyID uniquely identifies this message within the session.
	ProxyID string
	// Sequence is a session-global, strictly increasing acquisition order.
	Sequence int64
	// Timestamp is when the pipeline received the message, UTC.
	Timestamp time.Time
	// Direction is the flow direction.
	Direction Direction
	// Transport is the wire transport the message arrived on.
	Transport Transport
	// Raw is the decoded JSON-RPC envelope.
	Raw jsonrpc.Message
	// JSONRPCID is the message's jsonrpc id, when it has one (requests and
	// responses; empty for notifications).
	JSONRPCID jsonrpc.ID
	// HasJSONRPCID reports whether JSONRPCID is meaningful.
	HasJSONRPCID bool
	// Method is the method name for requests and notifications, empty otherwise.
	Method string
	// CorrelatedID is the ProxyID of the earlier, opposite-direction message
	// that shares this message's jsonrpc id, when one exists.
	CorrelatedID string
	// Modified reports whether an operator edited this message before it
	// was forwarded.
	Modified bool
	// OriginalRaw holds the envelope as originally received, only present
	// when Modified is true.
	OriginalRaw jsonrpc.Message
}

// wireMessage is the durable, JSON-serializable projection of a ProxyMessage.
type wireMessage struct {
	ProxyID         string          `json:"proxy_id"`
	Sequence        int64           `json:"sequence"`
	Timestamp       time.Time       `json:"timestamp"`
	Direction       Direction       `json:"direction"`
	Transport       Transport       `json:"transport"`
	JSONRPCID       json.RawMessage `json:"jsonrpc_id,omitempty"`
	Method          string          `json:"method,omitempty"`
	CorrelatedID    string          `json:"correlated_id,omitempty"`
	Modified        bool            `json:"modified"`
	Payload         json.RawMessage `json:"payload"`
	OriginalPayload json.RawMessage `json:"original_payload,omitempty"`
}

// Record is the durable form of a captured session: everything needed
// to reconstruct it from disk.
type Record struct {
	ID            string
	StartedAt     time.Time
	EndedAt       *time.Time
	Transport     Transport
	ServerCommand string
	ServerURL     string
	Messages      []ProxyMessage
	Metadata      map[string]any
}

type wireRecord struct {
	ID            string          `json:"id"`
	StartedAt     time.Time       `json:"started_at"`
	EndedAt       *time.Time      `json:"ended_at"`
	Transport     Transport       `json:"transport"`
	ServerCommand string          `json:"server_command,omitempty"`
	ServerURL     string          `json:"server_url,omitempty"`
	Messages      []wireMessage   `json:"messages"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}
