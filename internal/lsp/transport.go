package lsp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// MaxMessageSize bounds a single line-delimited JSON-RPC message.
const MaxMessageSize = 4 * 1024 * 1024

// Transport is the line-delimited JSON-RPC framing gemcheck's server
// reads from and writes to. Real LSP framing (Content-Length headers)
// is out of scope (spec.md §1); a Transport implementation owns that,
// this package only owns dispatch.
type Transport struct {
	stdin   io.Reader
	stdout  io.Writer
	scanner *bufio.Scanner
}

// NewTransport wraps stdin/stdout as a line-delimited JSON-RPC
// transport.
func NewTransport(stdin io.Reader, stdout io.Writer) *Transport {
	return &Transport{stdin: stdin, stdout: stdout}
}

// ReadMessage reads the next message from the input stream.
func (t *Transport) ReadMessage() (*Message, error) {
	if t.scanner == nil {
		t.scanner = bufio.NewScanner(t.stdin)
		t.scanner.Buffer(make([]byte, MaxMessageSize), MaxMessageSize)
	}

	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return nil, fmt.Errorf("lsp: error reading transport: %w", err)
		}
		return nil, io.EOF
	}

	var msg Message
	if err := json.Unmarshal(t.scanner.Bytes(), &msg); err != nil {
		return nil, fmt.Errorf("lsp: error parsing JSON-RPC message: %w", err)
	}
	return &msg, nil
}

// WriteMessage writes msg to the output stream.
func (t *Transport) WriteMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("lsp: error marshaling JSON-RPC message: %w", err)
	}
	if _, err := fmt.Fprintf(t.stdout, "%s\n", data); err != nil {
		return fmt.Errorf("lsp: error writing transport: %w", err)
	}
	return nil
}
