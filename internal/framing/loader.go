// Package framing reassembles coordinator requests from an arbitrarily chunked byte stream.
package framing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rbright/panelfront/internal/protocol"
)

// Loader accumulates raw bytes and yields complete requests once whole frames are buffered.
//
// A frame is a JSON list of request objects (a bare object is also accepted).
// Frames may be concatenated back to back, optionally separated by whitespace.
type Loader struct {
	buf []byte
}

// NewLoader returns an empty loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Write appends one received chunk. It never fails.
func (l *Loader) Write(p []byte) (int, error) {
	l.buf = append(l.buf, p...)
	return len(p), nil
}

// Update appends already-decoded text.
func (l *Loader) Update(text string) {
	l.buf = append(l.buf, text...)
}

// Buffered reports how many bytes are waiting for a frame to complete.
func (l *Loader) Buffered() int {
	return len(l.buf)
}

// Requests drains every complete frame in decode order. Incomplete trailing
// data stays buffered. A malformed frame discards the buffer and returns the
// requests decoded before it together with the error.
func (l *Loader) Requests() ([]protocol.Request, error) {
	var out []protocol.Request
	for {
		l.buf = bytes.TrimLeft(l.buf, " \t\r\n")
		if len(l.buf) == 0 {
			l.buf = nil
			return out, nil
		}

		dec := json.NewDecoder(bytes.NewReader(l.buf))
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
				return out, nil
			}
			l.buf = nil
			return out, fmt.Errorf("decode frame: %w", err)
		}
		l.buf = l.buf[dec.InputOffset():]

		reqs, err := decodeFrame(raw)
		if err != nil {
			l.buf = nil
			return out, err
		}
		out = append(out, reqs...)
	}
}

func decodeFrame(raw json.RawMessage) ([]protocol.Request, error) {
	switch raw[0] {
	case '[':
		var list []protocol.Request
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		out := make([]protocol.Request, 0, len(list))
		for _, r := range list {
			if r == nil {
				continue
			}
			out = append(out, r)
		}
		return out, nil
	case '{':
		var r protocol.Request
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("decode frame: %w", err)
		}
		return []protocol.Request{r}, nil
	default:
		return nil, fmt.Errorf("decode frame: expected list or object, got %.16q", raw)
	}
}
