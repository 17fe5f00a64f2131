// Package signing computes content hashes for the idempotency log and the
// HMAC signatures exchanged with customer webhooks and provider push APIs.
package signing

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
)

// HeaderName carries the webhook body signature
const HeaderName = "X-Heka-Signature"

// ContentHash returns the sha256 hex digest of the payload with the volatile
// keys removed at every object level. Object keys are re-encoded in sorted
// order so that field order does not affect the hash. Input that is not JSON
// is hashed as-is.
func ContentHash(payload []byte, volatile ...string) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return digest(payload), nil
	}

	drop := make(map[string]bool, len(volatile))
	for _, k := range volatile {
		drop[k] = true
	}

	canonical, err := json.Marshal(strip(doc, drop))
	if err != nil {
		return "", err
	}
	return digest(canonical), nil
}

func strip(v any, drop map[string]bool) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if drop[k] {
				delete(t, k)
				continue
			}
			t[k] = strip(child, drop)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = strip(child, drop)
		}
		return t
	default:
		return v
	}
}

func digest(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Sign returns base64(HMAC-SHA1(body, secret + "&")).
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha1.New, []byte(secret+"&"))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by Sign in constant time.
func Verify(body []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}
