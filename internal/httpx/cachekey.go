package httpx

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
)

// CacheKey derives the deterministic memoization key for a read
// request: base URL, query parameters (both those embedded in the URL
// and those passed explicitly) and body are normalized with map keys
// sorted recursively and leaf values stringified, then joined and
// hashed. The same request shape always hashes identically regardless
// of map iteration or parameter order.
func CacheKey(rawURL string, query map[string]string, body any) string {
	base := rawURL
	params := map[string]any{}

	if parsed, err := url.Parse(rawURL); err == nil {
		for k, vs := range parsed.Query() {
			if len(vs) == 1 {
				params[k] = vs[0]
			} else {
				params[k] = vs
			}
		}
		parsed.RawQuery = ""
		parsed.Fragment = ""
		base = parsed.String()
	}
	for k, v := range query {
		params[k] = v
	}

	paramsJSON := canonicalJSON(params)
	bodyJSON := canonicalJSON(body)

	sum := sha256.Sum256([]byte(base + "||" + paramsJSON + "||" + bodyJSON))
	return hex.EncodeToString(sum[:])
}

// canonicalJSON renders a value as compact JSON with sorted keys and
// all leaves stringified, so "1" and 1 normalize identically.
func canonicalJSON(v any) string {
	if v == nil {
		return "{}"
	}

	// Round-trip through JSON to reduce arbitrary structs to plain
	// maps/slices before normalizing.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%q", fmt.Sprint(v))
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var plain any
	if err := dec.Decode(&plain); err != nil {
		return string(raw)
	}

	normalized := stringifyLeaves(plain)
	out, err := json.Marshal(normalized)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// stringifyLeaves converts every scalar to its string form while
// keeping map/slice structure. json.Marshal emits map keys sorted, so
// the result is order-independent.
func stringifyLeaves(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for _, k := range sortedKeys(t) {
			out[k] = stringifyLeaves(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = stringifyLeaves(item)
		}
		return out
	case nil:
		return nil
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
