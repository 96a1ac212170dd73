package proxy

import (
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/sentinel-gate/mcprelay/internal/domain/correlate"
)

// CorrelationMap tracks, for each jsonrpc id currently in flight, the
// proxy id of the most recent message that carried it. It is shared
// across both forward-loop goroutines (and, during a replay, the
// replay engine), so all access is mutex-guarded rather than modeled
// as message passing: with only two or three writers this is simpler
// than an arbitrator goroutine and the critical section is tiny.
type CorrelationMap struct {
	mu sync.Mutex
	m  map[string]string // jsonrpc id (raw JSON text) -> proxy id
}

// NewCorrelationMap creates an empty CorrelationMap.
func NewCorrelationMap() *CorrelationMap {
	return &CorrelationMap{m: make(map[string]string)}
}

// idKey returns the stable map key for msg's jsonrpc id, derived from
// its raw wire encoding rather than the SDK's ID type directly (the
// SDK's jsonrpc.ID does not marshal correctly through a bare
// interface{}, so comparisons go through the encoded "id" field instead).
func idKey(msg jsonrpc.Message) (string, bool) {
	raw, err := jsonrpc.EncodeMessage(msg)
	if err != nil {
		return "", false
	}
	rawID := correlate.RawID(raw)
	if rawID == nil {
		return "", false
	}
	return string(rawID), true
}

// Correlate records proxyID as the latest message carrying msg's
// jsonrpc id (if any) and returns the proxy id of the previous message
// that carried the same id, when this message is a response or error
// response. Requests never report a correlated id of their own (there
// is no earlier message to point to) but still update the map so a later
// response in the opposite direction can find them. Notifications carry
// no id and leave the map untouched.
//
// A response pops its entry from the map rather than overwriting it:
// the request it answers is settled, so the map must not keep pointing
// a duplicate or late-arriving response with the same id at it. If two
// messages from opposite directions reuse the same jsonrpc id before
// either is answered, the second write overwrites the first.
func (c *CorrelationMap) Correlate(msg jsonrpc.Message, proxyID string) (correlatedID string) {
	key, ok := idKey(msg)
	if !ok {
		return ""
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if correlate.IsResponse(msg) {
		correlatedID = c.m[key]
		delete(c.m, key)
		return correlatedID
	}
	c.m[key] = proxyID
	return correlatedID
}

// Reserve claims rawIDText for the replay engine's fresh-id generator
// (used for every replayed request, the synthetic handshake included),
// ensuring it never collides with a real in-flight id. It returns false
// if the id is already in use.
func (c *CorrelationMap) Reserve(rawIDText string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.m[rawIDText]; exists {
		return false
	}
	c.m[rawIDText] = "__reserved__"
	return true
}
