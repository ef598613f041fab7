package domain

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

// DocumentID returns the search-index document id for a page URL: base64url
// of the raw URL bytes, unpadded. The encoding is deterministic, injective,
// and reversible, which makes index upserts and deletes idempotent without
// any internal key.
func DocumentID(url string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(url))
}

// URLFromDocumentID reverses DocumentID.
func URLFromDocumentID(id string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return "", fmt.Errorf("decode document id: %w", err)
	}
	return string(b), nil
}

// PageKey returns the deterministic result-store key for a page. The URL is
// sanitized to the character set accepted by KV store keys.
func PageKey(tenantID, url string) string {
	return tenantID + "_" + sanitizeKey(url)
}

// sanitizeKey replaces every byte outside [a-zA-Z0-9-_.()'] with '-'.
func sanitizeKey(s string) string {
	out := []byte(s)
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.' || c == '(' || c == ')' || c == '\'':
		default:
			out[i] = '-'
		}
	}
	return string(out)
}

// DeliveryKey returns the change-queue dedupe key for one enqueue of loc.
// The timestamp component keeps repeated scans from silently deduping
// legitimate re-changes of the same URL.
func DeliveryKey(tenantID, loc string, now time.Time) string {
	sum := sha256.Sum256([]byte(loc))
	return fmt.Sprintf("%s:%s:%d", tenantID, hex.EncodeToString(sum[:]), now.UnixMilli())
}
