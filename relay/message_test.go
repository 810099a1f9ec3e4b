package relay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/relay/body"
)

func TestResponseSetJSONSetsContentType(t *testing.T) {
	resp := NewResponse(200)
	require.NoError(t, resp.SetJSON(map[string]string{"hello": "world"}))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	data, err := body.ReadAll(context.Background(), resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"hello":"world"}`, string(data))
}

func TestResponseSetBytesPreservesExistingContentType(t *testing.T) {
	resp := NewResponse(200)
	resp.SetHeader("Content-Type", "text/plain")
	resp.SetBytes([]byte("hi"))
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
}
