// Package stdio implements transport.Adapter over newline-delimited
// JSON on an io.Reader/io.Writer pair: either the process's own
// stdin/stdout (the client-facing side) or a subprocess's stdin/stdout
// pipes (the server-facing side).
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/sentinel-gate/mcprelay/internal/port/transport"
	"github.com/sentinel-gate/mcprelay/pkg/mcp"
)

var _ transport.Adapter = (*Adapter)(nil)

const (
	initialScanBuf = 256 * 1024
	maxScanBuf     = 1024 * 1024
)

// Adapter frames one JSON-RPC message per line over an io.Reader and
// an io.Writer. Reads and writes are each serialized by their own
// mutex: a single Adapter may be written to concurrently by the
// pipeline's forward loop and a replay engine sharing the same
// connection, and the underlying writer is not assumed to be safe for
// concurrent use on its own.
type Adapter struct {
	scanner *bufio.Scanner
	readMu  sync.Mutex

	w      io.Writer
	writeMu sync.Mutex

	closer io.Closer
}

// New wraps r and w as a transport.Adapter. closer, if non-nil, is
// invoked by Close (e.g. to close a subprocess's pipes); when nil,
// Close is a no-op (the process's own os.Stdin/os.Stdout must not be
// closed out from under it).
func New(r io.Reader, w io.Writer, closer io.Closer) *Adapter {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialScanBuf), maxScanBuf)
	return &Adapter{scanner: scanner, w: w, closer: closer}
}

// Read blocks until the next newline-delimited message is available,
// ctx is cancelled, or the underlying reader is exhausted. Scanning
// itself does not observe ctx directly (bufio.Scanner has no
// cancellation hook); cancellation is expected to reach the reader by
// closing the underlying pipe or process, which unblocks Scan with an error.
func (a *Adapter) Read(ctx context.Context) (jsonrpc.Message, error) {
	a.readMu.Lock()
	defer a.readMu.Unlock()

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !a.scanner.Scan() {
			if err := a.scanner.Err(); err != nil {
				return nil, fmt.Errorf("stdio: scan: %w", err)
			}
			return nil, io.EOF
		}
		line := a.scanner.Bytes()
		if len(line) == 0 {
			continue // blank lines between messages are ignored
		}
		msg, err := mcp.DecodeMessage(line)
		if err != nil {
			return nil, fmt.Errorf("stdio: decode: %w", err)
		}
		return msg, nil
	}
}

// Write encodes msg and writes it as one line. ctx is honored only in
// that a context already cancelled before the write begins is rejected;
// the write itself is not interruptible mid-flight (io.Writer has no
// cancellation hook either).
func (a *Adapter) Write(ctx context.Context, msg jsonrpc.Message) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	raw, err := mcp.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("stdio: encode: %w", err)
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if _, err := a.w.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("stdio: write: %w", err)
	}
	return nil
}

// Close releases the underlying closer, if one was given.
func (a *Adapter) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}
