package body

import (
	"context"
	"io"
)

// Bytes is a Stream over an in-memory byte slice. Its length is always
// known in advance, so it is the natural producer for responses built
// from a fully-materialized payload (e.g. JSON bodies).
type Bytes struct {
	data []byte
	pos  int
}

// NewBytes wraps data as a Stream. data is not copied; the caller must not
// mutate it while the stream is in use.
func NewBytes(data []byte) *Bytes {
	return &Bytes{data: data}
}

func (b *Bytes) ReadSome(_ context.Context, p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	if b.pos >= len(b.data) {
		return n, io.EOF
	}
	return n, nil
}

func (b *Bytes) SizeHint() (int64, bool) {
	return int64(len(b.data) - b.pos), true
}

// empty is the zero-length Stream returned by EOF.
type empty struct{}

// EOF returns a Stream that yields no bytes and is immediately exhausted,
// used for requests and responses with no body (e.g. GET requests, 204
// responses).
func EOF() Stream { return empty{} }

func (empty) ReadSome(context.Context, []byte) (int, error) { return 0, io.EOF }
func (empty) SizeHint() (int64, bool)                       { return 0, true }
