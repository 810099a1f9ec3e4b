package body

import (
	"context"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/valyala/bytebufferpool"
)

// Encoding names the supported Content-Encoding tokens, shared between the
// body compression adapters and the middleware package.
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingDeflate  Encoding = "deflate"
	EncodingGzip     Encoding = "gzip"
	EncodingBrotli   Encoding = "br"
)

// decodeReader is the minimal surface every decompressing codec exposes:
// an io.Reader plus Close to release codec-internal buffers.
type decodeReader interface {
	io.Reader
	io.Closer
}

// compressed wraps an underlying Stream with a streaming decompression
// codec, passing each ReadSome call straight through as one Read call on
// the codec. Its length is never known in advance, since compression
// ratios are data-dependent.
type compressed struct {
	src  io.Reader // feeds the codec from the wrapped Stream
	dec  decodeReader
	pool *bytebufferpool.Pool
}

func (c *compressed) SizeHint() (int64, bool) { return 0, false }

func (c *compressed) ReadSome(_ context.Context, p []byte) (int, error) {
	return c.dec.Read(p)
}

func (c *compressed) Close() error {
	return c.dec.Close()
}

// streamReader adapts a Stream to io.Reader so it can feed a compress/
// decompress codec built around the stdlib io interfaces.
type streamReader struct {
	ctx context.Context
	s   Stream
}

func (r streamReader) Read(p []byte) (int, error) {
	return r.s.ReadSome(r.ctx, p)
}

type nopCloseReader struct{ io.Reader }

func (nopCloseReader) Close() error { return nil }

// Inflate returns a Stream that decompresses src according to enc as it is
// read. Used by request-side Decompress handling (C10) and by any handler
// that wants to transparently read a compressed upload.
func Inflate(ctx context.Context, src Stream, enc Encoding) (Stream, error) {
	sr := streamReader{ctx: ctx, s: src}
	switch enc {
	case EncodingIdentity, "":
		return src, nil
	case EncodingDeflate:
		r := flate.NewReader(sr)
		return &compressed{dec: r}, nil
	case EncodingGzip:
		r, err := gzip.NewReader(sr)
		if err != nil {
			return nil, err
		}
		return &compressed{dec: r}, nil
	case EncodingBrotli:
		r := brotli.NewReader(sr)
		return &compressed{dec: nopCloseReader{r}}, nil
	default:
		return nil, ErrUnsupportedEncoding
	}
}

// ErrUnsupportedEncoding is returned when a requested Content-Encoding
// token names a codec this package does not implement.
var ErrUnsupportedEncoding = errUnsupportedEncoding{}

type errUnsupportedEncoding struct{}

func (errUnsupportedEncoding) Error() string { return "body: unsupported content-encoding" }

// encodeWriter is the minimal surface every compressing codec exposes.
type encodeWriter interface {
	io.Writer
	io.Closer
	Flush() error
}

// Deflate compresses all of src (read to completion) using the named
// encoding and returns the result as a Bytes stream, using a pooled buffer
// for the intermediate write target. It is used by response-side
// compression middleware, which decides from the body's size hint whether
// to compress and then buffers the whole compressed body through this
// function (see middleware.Gzip/Deflate).
func Deflate(ctx context.Context, src Stream, enc Encoding, level int) (*Bytes, error) {
	buf := bufferPool.Get()
	defer bufferPool.Put(buf)

	var w encodeWriter
	switch enc {
	case EncodingDeflate:
		fw, err := flate.NewWriter(buf, level)
		if err != nil {
			return nil, err
		}
		w = fw
	case EncodingGzip:
		gw, err := gzip.NewWriterLevel(buf, level)
		if err != nil {
			return nil, err
		}
		w = gw
	case EncodingBrotli:
		w = brotli.NewWriterLevel(buf, level)
	default:
		return nil, ErrUnsupportedEncoding
	}

	chunk := make([]byte, 32*1024)
	for {
		n, err := src.ReadSome(ctx, chunk)
		if n > 0 {
			if _, werr := w.Write(chunk[:n]); werr != nil {
				return nil, werr
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	out := make([]byte, len(buf.B))
	copy(out, buf.B)
	return NewBytes(out), nil
}

var bufferPool bytebufferpool.Pool
