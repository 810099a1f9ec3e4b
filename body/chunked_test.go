package body

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkedReadsDecodedData(t *testing.T) {
	raw := "4\r\nWiki\r\n5\r\npedia\r\n0\r\n\r\n"
	c := NewChunked(strings.NewReader(raw), 0, 0)

	data, err := ReadAll(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "Wikipedia", string(data))
}

func TestChunkedRejectsBadSizeLine(t *testing.T) {
	raw := "zz\r\ndata\r\n0\r\n\r\n"
	c := NewChunked(strings.NewReader(raw), 0, 0)

	_, err := ReadAll(context.Background(), c)
	assert.ErrorIs(t, err, ErrChunkedEncoding)
}

func TestChunkedEnforcesMaxBodySize(t *testing.T) {
	raw := "5\r\nhello\r\n0\r\n\r\n"
	c := NewChunked(strings.NewReader(raw), 0, 3)

	_, err := ReadAll(context.Background(), c)
	assert.ErrorIs(t, err, ErrChunkedEncoding)
}

func TestChunkedSizeHintUnknown(t *testing.T) {
	c := NewChunked(strings.NewReader("0\r\n\r\n"), 0, 0)
	_, known := c.SizeHint()
	assert.False(t, known)
}
