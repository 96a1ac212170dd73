// Package correlate provides pure classification and extraction helpers
// over decoded JSON-RPC messages. These functions never mutate their
// input and never panic; callers get zero values back for messages
// that do not carry the field being asked about.
package correlate

import (
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Kind classifies a decoded JSON-RPC message.
type Kind int

const (
	// Unknown covers nil or unrecognized message shapes.
	Unknown Kind = iota
	// RequestKind is a call expecting a response (Request with a valid ID).
	RequestKind
	// NotificationKind is a Request with no ID.
	NotificationKind
	// ResponseKind is a successful Response (Result set, Error nil).
	ResponseKind
	// ErrorResponseKind is a Response carrying an Error instead of a Result.
	ErrorResponseKind
)

// String renders the Kind for logging.
func (k Kind) String() string {
	switch k {
	case RequestKind:
		return "request"
	case NotificationKind:
		return "notification"
	case ResponseKind:
		return "response"
	case ErrorResponseKind:
		return "error_response"
	default:
		return "unknown"
	}
}

// Classify returns the Kind of a decoded message. A nil message
// classifies as Unknown rather than panicking.
func Classify(msg jsonrpc.Message) Kind {
	switch m := msg.(type) {
	case *jsonrpc.Request:
		if m == nil {
			return Unknown
		}
		if m.IsCall() {
			return RequestKind
		}
		return NotificationKind
	case *jsonrpc.Response:
		if m == nil {
			return Unknown
		}
		if m.Error != nil {
			return ErrorResponseKind
		}
		return ResponseKind
	default:
		return Unknown
	}
}

// IsRequest reports whether msg is a call awaiting a response.
func IsRequest(msg jsonrpc.Message) bool { return Classify(msg) == RequestKind }

// IsNotification reports whether msg is a one-way request (no ID).
func IsNotification(msg jsonrpc.Message) bool { return Classify(msg) == NotificationKind }

// IsResponse reports whether msg is a successful or error response.
func IsResponse(msg jsonrpc.Message) bool {
	k := Classify(msg)
	return k == ResponseKind || k == ErrorResponseKind
}

// ExtractID returns the JSON-RPC id carried by msg, and whether one was
// present. Notifications and malformed messages report ok=false.
func ExtractID(msg jsonrpc.Message) (jsonrpc.ID, bool) {
	switch m := msg.(type) {
	case *jsonrpc.Request:
		if m == nil || !m.IsCall() {
			return jsonrpc.ID{}, false
		}
		return m.ID, true
	case *jsonrpc.Response:
		if m == nil || !m.ID.IsValid() {
			return jsonrpc.ID{}, false
		}
		return m.ID, true
	default:
		return jsonrpc.ID{}, false
	}
}

// ExtractMethod returns the method name for a request or notification,
// and the empty string for anything else (including responses, which
// carry no method name in JSON-RPC 2.0).
func ExtractMethod(msg jsonrpc.Message) string {
	req, ok := msg.(*jsonrpc.Request)
	if !ok || req == nil {
		return ""
	}
	return req.Method
}

// RawID extracts the "id" field directly from undecoded wire bytes,
// preserving its original JSON shape (number, string, or null). Callers
// apply it to a message re-encoded with jsonrpc.EncodeMessage, to get an
// id's wire text for use as a map key or a persisted field. It returns
// nil for malformed JSON or when there is no "id" field.
func RawID(raw []byte) json.RawMessage {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}
	return fields["id"]
}
