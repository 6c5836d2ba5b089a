// ABOUTME: Newline-delimited JSON transport over a pair of byte streams
// ABOUTME: Reads UTF-8 frames line by line and writes each message with an immediate flush

package mcp

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"
	"unicode/utf8"
)

// DefaultMaxMessageSize bounds a single inbound frame (10MB).
const DefaultMaxMessageSize = 10 << 20

// ErrInvalidUTF8 is wrapped by a TransportError when a frame is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("frame is not valid UTF-8")

// TransportError is a fatal stream failure. The server cannot continue after one.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return "transport " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport frames JSON messages one per line. It owns no protocol knowledge.
// ReadMessage must be called from a single goroutine; WriteMessage is safe for
// concurrent use.
type Transport struct {
	scanner *bufio.Scanner

	mu sync.Mutex
	w  *bufio.Writer
}

// NewTransport creates a transport reading from r and writing to w.
// maxMessageSize <= 0 selects DefaultMaxMessageSize.
func NewTransport(r io.Reader, w io.Writer, maxMessageSize int) *Transport {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	initial := 64 * 1024
	if initial > maxMessageSize {
		initial = maxMessageSize
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxMessageSize)

	return &Transport{
		scanner: scanner,
		w:       bufio.NewWriter(w),
	}
}

// ReadMessage returns the next non-blank line without its line terminator.
// It returns io.EOF once the input is closed, and a *TransportError on I/O
// failure, an oversized line or invalid UTF-8.
func (t *Transport) ReadMessage() ([]byte, error) {
	for t.scanner.Scan() {
		line := t.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if !utf8.Valid(line) {
			return nil, &TransportError{Op: "read", Err: ErrInvalidUTF8}
		}
		msg := make([]byte, len(line))
		copy(msg, line)
		return msg, nil
	}

	if err := t.scanner.Err(); err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	return nil, io.EOF
}

// WriteMessage writes msg followed by a newline and flushes.
func (t *Transport) WriteMessage(msg []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.w.Write(msg); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	if err := t.w.Flush(); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}
