// Package checksum computes certificate fingerprints.
package checksum

import (
	"crypto/sha256"
	"crypto/subtle"
	"crypto/x509"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint returns the SHA-256 fingerprint of the certificate's DER bytes.
func Fingerprint(cert *x509.Certificate) string {
	return Sum(cert.Raw)
}

// Equal compares two hex fingerprints case-insensitively in constant time.
func Equal(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Colons formats a hex fingerprint as upper-case byte pairs joined by ':'.
func Colons(fp string) string {
	fp = strings.ToUpper(fp)
	var b strings.Builder
	for i := 0; i+1 < len(fp); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(fp[i : i+2])
	}
	return b.String()
}
