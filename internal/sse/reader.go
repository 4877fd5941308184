// Package sse reads and writes server-sent event streams.
package sse

import (
	"bufio"
	"bytes"
	"io"
)

// DefaultMaxFrameSize bounds a single line. Generated images arrive as one
// base64 line, so this is far above the bufio default.
const DefaultMaxFrameSize = 64 << 20

var (
	dataPrefix = []byte("data:")
	doneMarker = []byte("[DONE]")
)

// Reader splits an upstream byte stream into data payloads. Lines may arrive
// split across any number of reads; an unterminated trailing line is held
// until the rest of it arrives.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader, maxFrameSize int) *Reader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	initial := 64 * 1024
	if maxFrameSize < initial {
		initial = maxFrameSize
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), maxFrameSize)
	return &Reader{scanner: scanner}
}

// Next returns the payload of the next "data:" line with surrounding
// whitespace removed. Event names, comments, blank payloads and the [DONE]
// sentinel are skipped. It returns io.EOF once the stream is exhausted.
func (r *Reader) Next() ([]byte, error) {
	for r.scanner.Scan() {
		line := r.scanner.Bytes()
		if !bytes.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := bytes.TrimSpace(line[len(dataPrefix):])
		if len(payload) == 0 || bytes.Equal(payload, doneMarker) {
			continue
		}
		// The scanner reuses its buffer on the next Scan.
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
