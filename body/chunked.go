package body

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
)

// ErrChunkedEncoding is returned for any malformed chunk framing: a bad
// size line, a missing CRLF terminator, or a chunk exceeding the
// configured limits.
var ErrChunkedEncoding = errors.New("body: invalid chunked encoding")

// Chunked is a Stream that decodes an RFC 7230 §4.1 chunked transfer
// encoding body read incrementally from r, never buffering the whole body
// in memory. Its length is unknown in advance, so SizeHint always reports
// false.
type Chunked struct {
	r              *bufio.Reader
	bytesRemaining uint64
	err            error
	eof            bool
	maxChunkSize   uint64
	maxBodySize    uint64
	totalRead      uint64
}

// NewChunked wraps r as a chunked-decoding Stream. maxChunkSize bounds any
// single chunk's declared size (0 selects a 16MiB default); maxBodySize
// bounds the cumulative decoded size across all chunks (0 means
// unlimited), both guarding against a peer declaring an unbounded body.
func NewChunked(r io.Reader, maxChunkSize, maxBodySize uint64) *Chunked {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	if maxChunkSize == 0 {
		maxChunkSize = 16 * 1024 * 1024
	}
	return &Chunked{r: br, maxChunkSize: maxChunkSize, maxBodySize: maxBodySize}
}

func (c *Chunked) SizeHint() (int64, bool) { return 0, false }

// ReadSome implements Stream. ctx is accepted for interface conformance;
// the underlying bufio.Reader has no cancellation hook, so a caller
// needing hard deadlines must set them on the socket this wraps.
func (c *Chunked) ReadSome(_ context.Context, p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	if c.eof {
		return 0, io.EOF
	}

	if c.bytesRemaining == 0 {
		if err := c.readChunkHeader(); err != nil {
			c.err = err
			return 0, err
		}
		if c.bytesRemaining == 0 {
			if err := c.readCRLF(); err != nil {
				c.err = err
				return 0, err
			}
			c.eof = true
			return 0, io.EOF
		}
	}

	toRead := uint64(len(p))
	if toRead > c.bytesRemaining {
		toRead = c.bytesRemaining
	}

	n, err := c.r.Read(p[:toRead])
	c.bytesRemaining -= uint64(n)
	c.totalRead += uint64(n)

	if c.maxBodySize > 0 && c.totalRead > c.maxBodySize {
		c.err = ErrChunkedEncoding
		return n, ErrChunkedEncoding
	}

	if err != nil {
		if err == io.EOF {
			err = ErrChunkedEncoding
		}
		c.err = err
		return n, err
	}

	if c.bytesRemaining == 0 {
		if err := c.readCRLF(); err != nil {
			c.err = err
			return n, err
		}
	}

	return n, nil
}

func (c *Chunked) readChunkHeader() error {
	line, err := c.r.ReadSlice('\n')
	if err != nil {
		if err == io.EOF {
			return ErrChunkedEncoding
		}
		return err
	}
	if len(line) < 2 || line[len(line)-1] != '\n' || line[len(line)-2] != '\r' {
		return ErrChunkedEncoding
	}
	line = line[:len(line)-2]

	if idx := bytes.IndexByte(line, ';'); idx >= 0 {
		line = line[:idx]
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return ErrChunkedEncoding
	}

	var size uint64
	for _, b := range line {
		size <<= 4
		switch {
		case b >= '0' && b <= '9':
			size |= uint64(b - '0')
		case b >= 'a' && b <= 'f':
			size |= uint64(b-'a') + 10
		case b >= 'A' && b <= 'F':
			size |= uint64(b-'A') + 10
		default:
			return ErrChunkedEncoding
		}
		if size > c.maxChunkSize {
			return ErrChunkedEncoding
		}
	}

	c.bytesRemaining = size
	return nil
}

func (c *Chunked) readCRLF() error {
	var b [2]byte
	if _, err := io.ReadFull(c.r, b[:]); err != nil {
		if err == io.EOF {
			return ErrChunkedEncoding
		}
		return err
	}
	if b[0] != '\r' || b[1] != '\n' {
		return ErrChunkedEncoding
	}
	return nil
}

// TotalRead returns the cumulative decoded byte count read so far.
func (c *Chunked) TotalRead() uint64 { return c.totalRead }
