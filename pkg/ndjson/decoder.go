// Package ndjson decodes newline-delimited JSON from a byte stream that
// arrives in arbitrary chunks.
//
// The Decoder is a small state machine carried across Feed calls:
//
//	chunk ──▶ pendingBytes + chunk ──UTF-8──▶ pendingLine + text ──split \n──▶ lines
//	                 ▲                                ▲                          │
//	                 └── incomplete rune              └── text after last \n ◀───┘
//
// Only complete, non-blank lines that parse as JSON are emitted. Everything
// else is either buffered (partial rune, partial line) or dropped (blank
// line, malformed JSON).
package ndjson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/papercomputeco/ragtube/pkg/logger"
	"github.com/papercomputeco/ragtube/pkg/utils"
)

// MalformedLineError describes one complete line that was not valid JSON.
// It is reported to the diagnostic side channel and never ends the stream.
type MalformedLineError struct {
	Line string
	Err  error
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("malformed ndjson line %q: %v", utils.Truncate(e.Line, 80), e.Err)
}

func (e *MalformedLineError) Unwrap() error {
	return e.Err
}

// errInvalidJSON is the cause attached to MalformedLineError.
var errInvalidJSON = errors.New("invalid JSON")

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithLogger sets the logger that receives malformed-line diagnostics.
func WithLogger(l *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMalformedHandler registers a callback invoked for every dropped line.
func WithMalformedHandler(fn func(*MalformedLineError)) DecoderOption {
	return func(d *Decoder) {
		d.onMalformed = fn
	}
}

// Decoder turns chunks of bytes into JSON values, one per line.
// It is not safe for concurrent use.
type Decoder struct {
	utf8 transform.Transformer

	// pendingBytes holds a trailing incomplete UTF-8 sequence.
	pendingBytes []byte

	// pendingLine holds decoded text after the last newline.
	pendingLine []byte

	logger      *slog.Logger
	onMalformed func(*MalformedLineError)
}

// NewDecoder returns a Decoder with empty state.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		utf8:   unicode.UTF8.NewDecoder(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed consumes one chunk and returns the JSON values completed by it, in
// order. The returned slices do not alias the decoder's buffers.
func (d *Decoder) Feed(chunk []byte) []json.RawMessage {
	text := d.decodeUTF8(chunk)
	if len(text) == 0 {
		return nil
	}

	buf := append(d.pendingLine, text...)

	var out []json.RawMessage
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		line := buf[:i]
		buf = buf[i+1:]

		if msg, ok := d.parseLine(line); ok {
			out = append(out, msg)
		}
	}

	// Copy so the next append cannot clobber lines handed out above.
	d.pendingLine = append([]byte(nil), buf...)

	return out
}

// Pending reports how many bytes are buffered: the incomplete rune plus the
// unterminated line.
func (d *Decoder) Pending() int {
	return len(d.pendingBytes) + len(d.pendingLine)
}

// Finish ends the stream. A buffered line without a terminating newline is
// discarded, never parsed, since it cannot be told apart from a truncated
// one. Finish returns the number of discarded bytes and resets the state.
func (d *Decoder) Finish() int {
	dropped := d.Pending()
	if dropped > 0 {
		d.logger.Debug("discarding unterminated ndjson line at end of stream",
			"bytes", dropped,
			"line", utils.Truncate(string(d.pendingLine), 80),
		)
	}

	d.pendingBytes = nil
	d.pendingLine = nil
	d.utf8.Reset()

	return dropped
}

// decodeUTF8 decodes pendingBytes+chunk, keeping an incomplete trailing
// sequence for the next call. Invalid bytes become U+FFFD.
func (d *Decoder) decodeUTF8(chunk []byte) []byte {
	src := append(d.pendingBytes, chunk...)
	d.pendingBytes = nil

	// A replacement character is 3 bytes, so 3x the input always fits.
	dst := make([]byte, 3*len(src)+4)

	var out []byte
	for len(src) > 0 {
		nDst, nSrc, err := d.utf8.Transform(dst, src, false)
		out = append(out, dst[:nDst]...)
		src = src[nSrc:]

		switch {
		case err == nil:
			return out

		case errors.Is(err, transform.ErrShortSrc):
			d.pendingBytes = append([]byte(nil), src...)
			return out

		case errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0):
			continue

		default:
			// The UTF-8 decoder never fails on input; bail out rather than spin.
			d.logger.Warn("utf-8 decode stopped", "error", err, "remaining", len(src))
			return out
		}
	}

	return out
}

// parseLine trims and strictly parses one complete line.
func (d *Decoder) parseLine(line []byte) (json.RawMessage, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}

	if !json.Valid(line) {
		malformed := &MalformedLineError{Line: string(line), Err: errInvalidJSON}
		d.logger.Warn("failed to parse ndjson line",
			"line", utils.Truncate(malformed.Line, 120),
			"error", malformed.Err,
		)
		if d.onMalformed != nil {
			d.onMalformed(malformed)
		}
		return nil, false
	}

	return append(json.RawMessage(nil), line...), true
}
