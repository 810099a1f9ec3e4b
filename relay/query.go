package relay

import (
	"net/url"
	"strings"
)

// Query is a parsed view of a request's query string. Unlike Header,
// duplicate keys follow last-wins semantics: a query string with the same
// key repeated keeps only the final occurrence, mirroring query_map in the
// original specification this mirrors.
type Query struct {
	m map[string]string
}

// ParseQuery parses a raw query string (without the leading '?') into a
// Query. Malformed percent-encoding in a pair is skipped rather than
// failing the whole parse, since a query string is advisory input.
func ParseQuery(raw string) Query {
	q := Query{m: make(map[string]string)}
	if raw == "" {
		return q
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		dk, err := url.QueryUnescape(key)
		if err != nil {
			continue
		}
		dv, err := url.QueryUnescape(value)
		if err != nil {
			continue
		}
		q.m[dk] = dv
	}
	return q
}

// Get returns the value bound to key and whether it was present.
func (q Query) Get(key string) (string, bool) {
	if q.m == nil {
		return "", false
	}
	v, ok := q.m[key]
	return v, ok
}

// Keys returns the set of keys present, in no particular order.
func (q Query) Keys() []string {
	keys := make([]string, 0, len(q.m))
	for k := range q.m {
		keys = append(keys, k)
	}
	return keys
}
