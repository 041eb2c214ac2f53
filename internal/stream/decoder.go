// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/jeranaias/streamchat/internal/util"
)

// DataPrefix starts every record line the decoder acts on.
const DataPrefix = "data: "

// MaxLineSize bounds the carry-over buffer. A line that grows past it is
// dropped as malformed.
const MaxLineSize = 1 << 20

// Decoder reassembles newline-delimited records from arbitrarily split
// chunks and decodes each `data: ` line into an Event. It is not safe for
// concurrent use.
type Decoder struct {
	logger    *slog.Logger
	carry     []byte
	overflow  bool
	malformed int
	skipped   int
}

// NewDecoder creates a decoder. A nil logger uses slog.Default.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger}
}

// Feed appends chunk to the carry-over buffer and returns the events from
// every line it completes. The trailing partial line stays buffered.
func (d *Decoder) Feed(chunk []byte) []Event {
	var events []Event
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			d.buffer(chunk)
			break
		}
		d.buffer(chunk[:i])
		chunk = chunk[i+1:]
		if ev, ok := d.completeLine(); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Flush decodes whatever is left in the buffer as a final line. Call it
// once the stream has ended.
func (d *Decoder) Flush() []Event {
	if len(d.carry) == 0 && !d.overflow {
		return nil
	}
	if ev, ok := d.completeLine(); ok {
		return []Event{ev}
	}
	return nil
}

// Malformed returns how many data lines failed to decode.
func (d *Decoder) Malformed() int {
	return d.malformed
}

// Skipped returns how many non-data lines were discarded. Blank record
// separators are not counted.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// Buffered returns the number of bytes waiting for a line terminator.
func (d *Decoder) Buffered() int {
	return len(d.carry)
}

func (d *Decoder) buffer(b []byte) {
	if d.overflow {
		return
	}
	if len(d.carry)+len(b) > MaxLineSize {
		d.overflow = true
		d.carry = d.carry[:0]
		return
	}
	d.carry = append(d.carry, b...)
}

// completeLine consumes the buffered line.
func (d *Decoder) completeLine() (Event, bool) {
	line := bytes.TrimSuffix(d.carry, []byte("\r"))
	overflow := d.overflow
	d.carry = d.carry[:0]
	d.overflow = false

	if overflow {
		d.malformed++
		d.logger.Warn("dropping oversized stream record", "limit", MaxLineSize)
		return Event{}, false
	}
	if len(line) == 0 {
		return Event{}, false
	}
	if !bytes.HasPrefix(line, []byte(DataPrefix)) {
		d.skipped++
		return Event{}, false
	}

	payload := line[len(DataPrefix):]
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		d.malformed++
		d.logger.Warn("skipping malformed stream record",
			"error", err,
			"record", util.TruncateRunes(string(payload), 120))
		return Event{}, false
	}
	return ev, true
}
