package proxy

import "errors"

// JSON-RPC 2.0 reserved error codes. The pipeline does not send error
// responses of its own: a dropped message is simply not forwarded, and a
// transport failure ends the run.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInternalError  = -32603
)

// ErrDropped names the Drop outcome for a held message. The forward loop
// does not return it: on Drop it skips the write and reads the next message.
var ErrDropped = errors.New("proxy: message dropped by operator")

// ErrTransport wraps a failure reading from or writing to an Adapter.
var ErrTransport = errors.New("proxy: transport error")
