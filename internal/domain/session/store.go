package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/sentinel-gate/mcprelay/internal/domain/correlate"
)

// ErrNotFound is returned by ByID when no message with the given proxy
// id has been appended to the store.
var ErrNotFound = errors.New("session: message not found")

// ErrCorrupt is returned by Load when the file at the given path does
// not decode as a valid session record, or any of its messages does
// not decode as a JSON-RPC envelope. Load never returns a partial record.
var ErrCorrupt = errors.New("session: corrupt session file")

// Store accumulates the ordered messages of a single proxy run and
// can persist/restore them as a Record. It is safe for concurrent use:
// the pipeline's two forward-loop goroutines both append to the same
// Store, and a replay engine sharing the same session may append too.
type Store struct {
	mu            sync.Mutex
	id            string
	startedAt     time.Time
	endedAt       *time.Time
	transport     Transport
	serverCommand string
	serverURL     string
	metadata      map[string]any
	messages      []ProxyMessage
	byID          map[string]int // ProxyID -> index into messages
	seq           int64
}

// New creates an empty Store for a session starting now.
func New(id string, transport Transport) *Store {
	return &Store{
		id:        id,
		startedAt: time.Now().UTC(),
		transport: transport,
		byID:      make(map[string]int),
		metadata:  make(map[string]any),
	}
}

// SetServerCommand records the subprocess command line used for this session.
func (s *Store) SetServerCommand(command string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverCommand = command
}

// SetServerURL records the upstream URL used for this session.
func (s *Store) SetServerURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serverURL = url
}

// SetMetadata sets a free-form metadata key/value pair on the session.
func (s *Store) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

// NextSequence atomically reserves and returns the next sequence number.
func (s *Store) NextSequence() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.seq
	s.seq++
	return n
}

// Append records a message in acquisition order. Appending a message
// whose ProxyID already exists replaces it in place (used when an
// operator's edit mutates a held message before release).
func (s *Store) Append(msg ProxyMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx, ok := s.byID[msg.ProxyID]; ok {
		s.messages[idx] = msg
		return
	}
	s.byID[msg.ProxyID] = len(s.messages)
	s.messages = append(s.messages, msg)
}

// Messages returns a snapshot of all recorded messages in sequence order.
func (s *Store) Messages() []ProxyMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ProxyMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// ByID returns the message with the given proxy id.
func (s *Store) ByID(proxyID string) (ProxyMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[proxyID]
	if !ok {
		return ProxyMessage{}, fmt.Errorf("%w: %s", ErrNotFound, proxyID)
	}
	return s.messages[idx], nil
}

// End marks the session as finished at the current time.
func (s *Store) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.endedAt = &now
}

// ToRecord builds the durable Record for the session's current state.
func (s *Store) ToRecord() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]ProxyMessage, len(s.messages))
	copy(msgs, s.messages)
	md := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		md[k] = v
	}
	return Record{
		ID:            s.id,
		StartedAt:     s.startedAt,
		EndedAt:       s.endedAt,
		Transport:     s.transport,
		ServerCommand: s.serverCommand,
		ServerURL:     s.serverURL,
		Messages:      msgs,
		Metadata:      md,
	}
}

// FromRecord builds a new Store holding the given Record's contents, for
// example after Load. The sequence counter resumes after the highest
// sequence in the Record.
func FromRecord(r Record) *Store {
	s := &Store{
		id:            r.ID,
		startedAt:     r.StartedAt,
		endedAt:       r.EndedAt,
		transport:     r.Transport,
		serverCommand: r.ServerCommand,
		serverURL:     r.ServerURL,
		metadata:      r.Metadata,
		byID:          make(map[string]int, len(r.Messages)),
	}
	if s.metadata == nil {
		s.metadata = make(map[string]any)
	}
	for _, m := range r.Messages {
		s.byID[m.ProxyID] = len(s.messages)
		s.messages = append(s.messages, m)
		if m.Sequence >= s.seq {
			s.seq = m.Sequence + 1
		}
	}
	return s
}

// Save atomically writes the session record to the given path. Parent
// directories are created as needed. The write sequence mirrors a
// well-worn pattern for durable single-file state: marshal, write to a
// sibling ".tmp" file, fsync, then rename over the destination so a
// reader never observes a partially written file.
func (s *Store) Save(path string) error {
	rec := s.ToRecord()
	data, err := marshalRecord(rec)
	if err != nil {
		return fmt.Errorf("session: marshal record: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("session: create parent dirs: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmpPath)
	}
	if _, err := f.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("session: write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("session: fsync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("session: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("session: rename temp file: %w", err)
	}
	return nil
}

// Load reads and decodes a session record from path into a fresh Store.
// Any message payload that fails to decode as a JSON-RPC envelope fails
// the whole load with ErrCorrupt; there is no partial result.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read file: %w", err)
	}
	rec, err := unmarshalRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return FromRecord(rec), nil
}

func marshalRecord(rec Record) ([]byte, error) {
	wr := wireRecord{
		ID:            rec.ID,
		StartedAt:     rec.StartedAt,
		EndedAt:       rec.EndedAt,
		Transport:     rec.Transport,
		ServerCommand: rec.ServerCommand,
		ServerURL:     rec.ServerURL,
		Metadata:      rec.Metadata,
	}
	for _, m := range rec.Messages {
		wm, err := toWireMessage(m)
		if err != nil {
			return nil, err
		}
		wr.Messages = append(wr.Messages, wm)
	}
	data, err := json.MarshalIndent(wr, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func unmarshalRecord(data []byte) (Record, error) {
	var wr wireRecord
	if err := json.Unmarshal(data, &wr); err != nil {
		return Record{}, err
	}
	rec := Record{
		ID:            wr.ID,
		StartedAt:     wr.StartedAt,
		EndedAt:       wr.EndedAt,
		Transport:     wr.Transport,
		ServerCommand: wr.ServerCommand,
		ServerURL:     wr.ServerURL,
		Metadata:      wr.Metadata,
	}
	for _, wm := range wr.Messages {
		m, err := fromWireMessage(wm)
		if err != nil {
			return Record{}, err
		}
		rec.Messages = append(rec.Messages, m)
	}
	return rec, nil
}

func toWireMessage(m ProxyMessage) (wireMessage, error) {
	payload, err := jsonrpc.EncodeMessage(m.Raw)
	if err != nil {
		return wireMessage{}, fmt.Errorf("encode payload for %s: %w", m.ProxyID, err)
	}
	wm := wireMessage{
		ProxyID:      m.ProxyID,
		Sequence:     m.Sequence,
		Timestamp:    m.Timestamp,
		Direction:    m.Direction,
		Transport:    m.Transport,
		Method:       m.Method,
		CorrelatedID: m.CorrelatedID,
		Modified:     m.Modified,
		Payload:      payload,
	}
	if m.HasJSONRPCID {
		wm.JSONRPCID = correlate.RawID(payload)
	}
	if m.Modified && m.OriginalRaw != nil {
		orig, err := jsonrpc.EncodeMessage(m.OriginalRaw)
		if err != nil {
			return wireMessage{}, fmt.Errorf("encode original payload for %s: %w", m.ProxyID, err)
		}
		wm.OriginalPayload = orig
	}
	return wm, nil
}

func fromWireMessage(wm wireMessage) (ProxyMessage, error) {
	decoded, err := jsonrpc.DecodeMessage(wm.Payload)
	if err != nil {
		return ProxyMessage{}, fmt.Errorf("decode payload for %s: %w", wm.ProxyID, err)
	}
	m := ProxyMessage{
		ProxyID:      wm.ProxyID,
		Sequence:     wm.Sequence,
		Timestamp:    wm.Timestamp,
		Direction:    wm.Direction,
		Transport:    wm.Transport,
		Method:       wm.Method,
		CorrelatedID: wm.CorrelatedID,
		Modified:     wm.Modified,
		Raw:          decoded,
	}
	if id, ok := correlate.ExtractID(decoded); ok {
		m.JSONRPCID = id
		m.HasJSONRPCID = true
	}
	if wm.Modified && len(wm.OriginalPayload) > 0 {
		orig, err := jsonrpc.DecodeMessage(wm.OriginalPayload)
		if err != nil {
			return ProxyMessage{}, fmt.Errorf("decode original payload for %s: %w", wm.ProxyID, err)
		}
		m.OriginalRaw = orig
	}
	return m, nil
}
