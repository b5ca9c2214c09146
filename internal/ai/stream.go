package ai

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// Upper bound on bytes held while waiting for a payload split across
	// chunks to complete. A provider that never terminates a malformed
	// line fails the stream instead of growing the buffer forever.
	maxPendingBytes = 1 << 20
)

// ErrStreamBufferExceeded reports a pending line that never became parseable.
var ErrStreamBufferExceeded = errors.New("ai: stream buffer limit exceeded")

// StreamDecoder turns raw event-stream chunks into cumulative content
// updates. Chunks may split at any byte offset, including inside multi-byte
// characters and inside JSON payloads: the decoder only splits its buffer at
// '\n' (never part of a UTF-8 sequence), so partial runes and partial
// payloads stay buffered until the rest arrives.
type StreamDecoder struct {
	pending []byte
	content strings.Builder
	done    bool
}

func NewStreamDecoder() *StreamDecoder {
	return &StreamDecoder{}
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Feed consumes one chunk and returns the updates it completed. done is true
// once the [DONE] sentinel has been seen; later chunks are ignored.
func (d *StreamDecoder) Feed(chunk []byte) (updates []Update, done bool, err error) {
	if d.done {
		return nil, true, nil
	}

	d.pending = append(d.pending, chunk...)
	if len(d.pending) > maxPendingBytes {
		return nil, false, ErrStreamBufferExceeded
	}

	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			return updates, false, nil
		}
		line := string(d.pending[:i])
		d.pending = d.pending[i+1:]

		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}
		payload := strings.TrimSpace(line[len(dataPrefix):])
		if payload == doneSentinel {
			d.done = true
			return updates, true, nil
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			// Presumed truncated by a chunk boundary: put the line back
			// in front of the buffer and wait for more bytes. Never drop
			// a line on parse failure.
			restored := make([]byte, 0, len(line)+1+len(d.pending))
			restored = append(restored, line...)
			restored = append(restored, '\n')
			restored = append(restored, d.pending...)
			d.pending = restored
			return updates, false, nil
		}

		if len(ev.Choices) == 0 {
			continue
		}
		delta := ev.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		d.content.WriteString(delta)
		updates = append(updates, Update{Delta: delta, Content: d.content.String()})
	}
}

// Content returns the cumulative assistant text decoded so far.
func (d *StreamDecoder) Content() string {
	return d.content.String()
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *StreamDecoder) Done() bool {
	return d.done
}
