package body

import (
	"context"
	"io"
	"os"
)

// File is a Stream over an open *os.File. SizeHint reports the file's
// size at construction time, taken with a single Stat call rather than
// re-stat'd on every call.
type File struct {
	f    *os.File
	size int64
}

// NewFile wraps f as a Stream. The caller retains ownership of f except
// that Close (if called on the returned *File) closes it.
func NewFile(f *os.File) (*File, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &File{f: f, size: fi.Size()}, nil
}

func (fs *File) ReadSome(_ context.Context, p []byte) (int, error) {
	n, err := fs.f.Read(p)
	if err == io.EOF {
		return n, io.EOF
	}
	return n, err
}

func (fs *File) SizeHint() (int64, bool) {
	return fs.size, true
}

// Close releases the underlying file descriptor.
func (fs *File) Close() error {
	return fs.f.Close()
}
