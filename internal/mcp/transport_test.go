// ABOUTME: Tests for the newline-delimited transport
// ABOUTME: Covers framing, blank lines, CRLF, UTF-8 rejection, oversize frames and write failures

package mcp

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransport_ReadMessage(t *testing.T) {
	input := "{\"a\":1}\n\n   \n{\"b\":2}\r\n{\"c\":3}"
	tr := NewTransport(strings.NewReader(input), io.Discard, 0)

	var got []string
	for {
		msg, err := tr.ReadMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, string(msg))
	}

	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}, got)
}

func TestTransport_InvalidUTF8IsFatal(t *testing.T) {
	tr := NewTransport(bytes.NewReader([]byte("{\"a\":\"\xff\xfe\"}\n")), io.Discard, 0)

	_, err := tr.ReadMessage()
	require.Error(t, err)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "read", terr.Op)
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestTransport_OversizeFrameIsFatal(t *testing.T) {
	tr := NewTransport(strings.NewReader(strings.Repeat("x", 128)+"\n"), io.Discard, 64)

	_, err := tr.ReadMessage()
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
}

func TestTransport_WriteMessageFlushesEachFrame(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTransport(strings.NewReader(""), &buf, 0)

	require.NoError(t, tr.WriteMessage([]byte(`{"id":1}`)))
	assert.Equal(t, "{\"id\":1}\n", buf.String())

	require.NoError(t, tr.WriteMessage([]byte(`{"id":2}`)))
	assert.Equal(t, "{\"id\":1}\n{\"id\":2}\n", buf.String())
}

func TestTransport_ConcurrentWritesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTransport(strings.NewReader(""), &buf, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tr.WriteMessage([]byte(`{"payload":"` + strings.Repeat("z", 512) + `"}`))
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 50)
	for _, line := range lines {
		assert.Len(t, line, len(`{"payload":""}`)+512)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestTransport_WriteErrorIsTransportError(t *testing.T) {
	tr := NewTransport(strings.NewReader(""), failingWriter{}, 0)

	err := tr.WriteMessage([]byte(`{}`))
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "write", terr.Op)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestTransport_ReadErrorIsTransportError(t *testing.T) {
	tr := NewTransport(failingReader{}, io.Discard, 0)

	_, err := tr.ReadMessage()
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Contains(t, err.Error(), "device gone")
}
