package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonical returns the RFC 8785 canonical JSON form of v: keys sorted,
// no insignificant whitespace, UTF-8 without HTML or non-ASCII escaping.
// Struct tags are honoured because v is marshalled first.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return out, nil
}

// SHA256Text returns the hex SHA-256 of the UTF-8 bytes of s.
func SHA256Text(s string) string {
	return sha256Sum([]byte(s))
}

// SHA256JSON returns the hex SHA-256 of the canonical JSON form of v.
func SHA256JSON(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return sha256Sum(b), nil
}

// Fingerprint returns the one-way digest of secret that is mixed into every
// entry hash.
func Fingerprint(secret string) string {
	return SHA256Text(secret)
}

// sha256Sum returns the hex-encoded SHA-256 digest of data.
func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
