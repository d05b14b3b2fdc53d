package ndjson

import (
	"encoding/json"
	"errors"
	"io"
	"iter"
	"sync"
)

// DefaultReadBufferSize is the chunk size used for each Read on the source.
const DefaultReadBufferSize = 4096

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithReadBufferSize overrides the per-Read chunk size.
func WithReadBufferSize(n int) ReaderOption {
	return func(r *Reader) {
		if n > 0 {
			r.bufSize = n
		}
	}
}

// WithDecoderOptions passes options through to the underlying Decoder.
func WithDecoderOptions(opts ...DecoderOption) ReaderOption {
	return func(r *Reader) {
		r.decoderOpts = append(r.decoderOpts, opts...)
	}
}

// Reader pulls chunks from an io.ReadCloser through a Decoder and hands out
// one JSON value at a time. The source is closed exactly once: on end of
// stream, on a read error, or on an explicit Close.
type Reader struct {
	src         io.ReadCloser
	dec         *Decoder
	decoderOpts []DecoderOption
	bufSize     int
	buf         []byte

	// queue holds values decoded from the last chunk but not yet returned.
	queue []json.RawMessage

	done      bool
	closeOnce sync.Once
	closeErr  error
}

// NewReader wraps src. The caller must either drain the Reader or call Close.
func NewReader(src io.ReadCloser, opts ...ReaderOption) *Reader {
	r := &Reader{
		src:     src,
		bufSize: DefaultReadBufferSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.dec = NewDecoder(r.decoderOpts...)
	r.buf = make([]byte, r.bufSize)
	return r
}

// Next returns the next JSON value. At end of stream it returns (nil, nil)
// and the source has been closed. A read error is returned as-is after
// closing the source; further calls return (nil, nil).
func (r *Reader) Next() (json.RawMessage, error) {
	for {
		if len(r.queue) > 0 {
			msg := r.queue[0]
			r.queue = r.queue[1:]
			return msg, nil
		}

		if r.done {
			return nil, nil
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.queue = r.dec.Feed(r.buf[:n])
		}

		if err != nil {
			r.done = true
			r.dec.Finish()
			_ = r.release()

			if errors.Is(err, io.EOF) {
				continue
			}
			r.queue = nil
			return nil, err
		}
	}
}

// All returns an iterator over the remaining values. Breaking out of the
// loop closes the source.
func (r *Reader) All() iter.Seq2[json.RawMessage, error] {
	return func(yield func(json.RawMessage, error) bool) {
		defer r.Close()

		for {
			msg, err := r.Next()
			if err != nil {
				yield(nil, err)
				return
			}
			if msg == nil {
				return
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}

// Close releases the source. It is safe to call more than once; only the
// first call reaches the underlying ReadCloser.
func (r *Reader) Close() error {
	r.done = true
	r.queue = nil
	return r.release()
}

func (r *Reader) release() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.src.Close()
	})
	return r.closeErr
}
