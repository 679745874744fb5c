// Package mac computes and verifies the keyed payload-integrity MAC
// over VectorMetadata: HMAC-SHA256 over a canonical serialization
// (object keys sorted, array order preserved). No canonical-JSON
// library appears anywhere in the retrieved example corpus, so this
// round-trips the value through encoding/json into generic values and
// re-emits objects with keys sorted by sort.Strings — a legitimate
// stdlib fallback (see DESIGN.md).
package mac

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize produces a deterministic JSON encoding of v: object keys
// sorted lexicographically, arrays left in their original order,
// numbers and strings emitted via encoding/json's stable formatting.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal for canonicalization: %w", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("unmarshal for canonicalization: %w", err)
	}

	var buf []byte
	buf, err = appendCanonical(buf, generic)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func appendCanonical(buf []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			buf, err = appendCanonical(buf, val[k])
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, '}')
		return buf, nil
	case []any:
		buf = append(buf, '[')
		for i, elem := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendCanonical(buf, elem)
			if err != nil {
				return nil, err
			}
		}
		buf = append(buf, ']')
		return buf, nil
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	}
}

// Sign computes the hex-encoded HMAC-SHA256 over v's canonical form.
func Sign(secret string, v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether expectedMAC matches v's canonical form under
// secret, using a constant-time comparison.
func Verify(secret string, v any, expectedMAC string) (bool, error) {
	computed, err := Sign(secret, v)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(computed), []byte(expectedMAC)), nil
}
