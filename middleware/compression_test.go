package middleware

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/relay"
	"github.com/yourusername/relay/body"
)

func TestGzipCompressesWhenAccepted(t *testing.T) {
	payload := strings.Repeat("hello world ", 100)
	final := relay.ServiceFunc(func(ctx context.Context, r *relay.Request) (*relay.Response, error) {
		resp := relay.NewResponse(200)
		resp.SetHeader("Content-Type", "text/plain")
		resp.SetBytes([]byte(payload))
		return resp, nil
	})

	svc := Gzip(CompressionConfig{})(final)

	req := &relay.Request{Header: relay.NewHeader(), Body: body.EOF()}
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := svc.Serve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
	assert.Equal(t, "Content-Encoding", resp.Header.Get("Vary"))

	compressed, err := body.ReadAll(context.Background(), resp.Body)
	require.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, payload, string(decoded))
}

func TestGzipSkippedWhenNotAccepted(t *testing.T) {
	final := relay.ServiceFunc(func(ctx context.Context, r *relay.Request) (*relay.Response, error) {
		return relay.NewResponse(200).SetBytes([]byte("plain")), nil
	})
	svc := Gzip(CompressionConfig{})(final)

	req := &relay.Request{Header: relay.NewHeader(), Body: body.EOF()}
	resp, err := svc.Serve(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestVaryHeaderAppendsOrPreserves(t *testing.T) {
	final := func(vary string) relay.Service {
		return relay.ServiceFunc(func(ctx context.Context, r *relay.Request) (*relay.Response, error) {
			resp := relay.NewResponse(200)
			if vary != "" {
				resp.SetHeader("Vary", vary)
			}
			resp.SetBytes([]byte(strings.Repeat("x", 100)))
			return resp, nil
		})
	}
	req := func() *relay.Request {
		r := &relay.Request{Header: relay.NewHeader(), Body: body.EOF()}
		r.Header.Set("Accept-Encoding", "gzip")
		return r
	}

	svc := Gzip(CompressionConfig{})(final("Accept-Language"))
	resp, err := svc.Serve(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, "Accept-Language, Content-Encoding", resp.Header.Get("Vary"))

	svc = Gzip(CompressionConfig{})(final("*"))
	resp, err = svc.Serve(context.Background(), req())
	require.NoError(t, err)
	assert.Equal(t, "*", resp.Header.Get("Vary"))
}

func TestDecompressDecodesGzipRequestBody(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte("request payload"))
	require.NoError(t, gw.Close())

	var seen string
	final := relay.ServiceFunc(func(ctx context.Context, r *relay.Request) (*relay.Response, error) {
		data, err := body.ReadAll(ctx, r.Body)
		if err != nil {
			return nil, err
		}
		seen = string(data)
		return relay.NewResponse(200), nil
	})

	svc := Decompress()(final)
	req := &relay.Request{Header: relay.NewHeader(), Body: body.NewBytes(buf.Bytes())}
	req.Header.Set("Content-Encoding", "gzip")

	_, err := svc.Serve(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "request payload", seen)
}
