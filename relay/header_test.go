package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderCaseInsensitive(t *testing.T) {
	h := NewHeader()
	h.Set("content-type", "text/plain")
	assert.Equal(t, "text/plain", h.Get("Content-Type"))
	assert.Equal(t, "text/plain", h.Get("CONTENT-TYPE"))
}

func TestHeaderSetReplacesInsertAppends(t *testing.T) {
	h := NewHeader()
	h.Insert("X-Trace", "a")
	h.Insert("X-Trace", "b")
	assert.Equal(t, []string{"a", "b"}, h.Values("X-Trace"))

	h.Set("X-Trace", "only")
	assert.Equal(t, []string{"only"}, h.Values("X-Trace"))
}

func TestHeaderDel(t *testing.T) {
	h := NewHeader()
	h.Set("X-A", "1")
	h.Del("x-a")
	assert.False(t, h.Has("X-A"))
}

func TestHeaderKeysPreserveInsertionOrder(t *testing.T) {
	h := NewHeader()
	h.Set("X-C", "1")
	h.Set("X-A", "2")
	h.Insert("X-B", "3")
	h.Set("X-A", "overwritten") // re-setting an existing key must not move it
	assert.Equal(t, []string{"X-C", "X-A", "X-B"}, h.Keys())

	h.Del("X-A")
	assert.Equal(t, []string{"X-C", "X-B"}, h.Keys())
}
