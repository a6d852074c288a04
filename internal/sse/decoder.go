package sse

import (
	"bytes"
	"encoding/json"
	"strings"

	"inkflow-backend/internal/model"
	"inkflow-backend/pkg/logger"
)

var dataPrefix = []byte("data:")

// Decoder reassembles newline-delimited SSE frames from arbitrarily split
// byte chunks. The tail of a chunk that does not end in a newline is carried
// over to the next Feed call, so a chunk boundary never loses or duplicates
// a frame. A Decoder is single-use: one per stream.
type Decoder struct {
	carry []byte
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes one raw chunk and returns the delta events decoded from every
// complete line it closes. Lines that are blank, lack the data prefix, carry
// the [DONE] marker, or fail to decode produce no event; a decode failure is
// logged and skipped without ending the stream.
func (d *Decoder) Feed(chunk []byte) []model.CompletionChunk {
	d.carry = append(d.carry, chunk...)

	var events []model.CompletionChunk
	for {
		i := bytes.IndexByte(d.carry, '\n')
		if i < 0 {
			break
		}
		line := d.carry[:i]
		d.carry = d.carry[i+1:]
		if ev, ok := ParseLine(line); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush decodes whatever is left in the carry buffer once the input sequence
// has ended, covering a final frame the server did not newline-terminate.
func (d *Decoder) Flush() []model.CompletionChunk {
	line := d.carry
	d.carry = nil
	if ev, ok := ParseLine(line); ok {
		return []model.CompletionChunk{ev}
	}
	return nil
}

// ParseLine extracts and decodes the payload of a single "data: " line.
func ParseLine(raw []byte) (model.CompletionChunk, bool) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 || !bytes.HasPrefix(line, dataPrefix) {
		return model.CompletionChunk{}, false
	}
	data := strings.TrimSpace(string(bytes.TrimPrefix(line, dataPrefix)))
	if data == "" || data == "[DONE]" {
		return model.CompletionChunk{}, false
	}
	var ev model.CompletionChunk
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		logger.Warnf("skipping malformed SSE payload: %v", err)
		return model.CompletionChunk{}, false
	}
	return ev, true
}
