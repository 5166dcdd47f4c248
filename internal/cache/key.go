package cache

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CanonicalKey builds the cache key for a request: METHOD + ":" +
// request-line-with-sorted-query-params, so that semantically identical
// requests (differing only in query-parameter order) hash to the same
// entry — the cache-key-hygiene rule the spec calls out explicitly.
func CanonicalKey(method, path string, query url.Values) string {
	names := make([]string, 0, len(query))
	for k := range query {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(':')
	b.WriteString(path)
	if len(names) > 0 {
		b.WriteByte('?')
		for i, name := range names {
			if i > 0 {
				b.WriteByte('&')
			}
			values := append([]string(nil), query[name]...)
			sort.Strings(values)
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(strings.Join(values, ","))
		}
	}
	return b.String()
}

// HashKey compresses a canonical key to a fixed-width, fast, non-
// cryptographic hash for use as the actual map key — the cache's own
// lookup key is distinct from the ETag validator, which uses MD5 over the
// response body, not xxhash over the request.
func HashKey(canonical string) string {
	return strconv.FormatUint(xxhash.Sum64String(canonical), 16)
}
