package checksum

import (
	"crypto/x509"
	"testing"
)

func TestSum(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %s", got)
	}
}

func TestFingerprintUsesRawDER(t *testing.T) {
	cert := &x509.Certificate{Raw: []byte("abc")}
	if Fingerprint(cert) != Sum([]byte("abc")) {
		t.Error("fingerprint must hash cert.Raw")
	}
}

func TestEqual(t *testing.T) {
	if !Equal("ABcd", "abCD") {
		t.Error("Equal should ignore case")
	}
	if Equal("abcd", "abce") || Equal("ab", "abcd") {
		t.Error("Equal matched different fingerprints")
	}
}

func TestColons(t *testing.T) {
	if got := Colons("ba7816bf"); got != "BA:78:16:BF" {
		t.Errorf("Colons = %q", got)
	}
}
