// Package models defines the fetch result variants returned to callers.
//
// Result is a closed union: every variant lives in this package and callers
// switch on the concrete type.
package models

import (
	"encoding/json"
	"time"
)

// Kind is the JSON discriminator of a result variant.
type Kind string

const (
	KindMenu        Kind = "menu"
	KindText        Kind = "text"
	KindBinary      Kind = "binary"
	KindGemtext     Kind = "gemtext"
	KindSuccess     Kind = "success"
	KindInput       Kind = "input"
	KindRedirect    Kind = "redirect"
	KindFailure     Kind = "failure"
	KindCertificate Kind = "certificate"
	KindError       Kind = "error"
)

// Protocols.
const (
	ProtocolGopher = "gopher"
	ProtocolGemini = "gemini"
)

// RequestInfo is the provenance attached to every result.
type RequestInfo struct {
	// URL is the fully resolved address used, after port and type defaulting.
	URL       string    `json:"url"`
	Protocol  string    `json:"protocol"`
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"cached,omitempty"`
}

// Result is implemented by every variant in this package.
type Result interface {
	Kind() Kind
	Request() RequestInfo
	// WithRequest returns a copy carrying info.
	WithRequest(info RequestInfo) Result
	isResult()
}

// IsCacheable reports whether r is a successful, terminal outcome.
func IsCacheable(r Result) bool {
	switch r.(type) {
	case MenuResult, TextResult, BinaryResult, GemtextResult, SuccessResult:
		return true
	}
	return false
}

// Encode marshals r with its kind discriminator.
func Encode(r Result) ([]byte, error) {
	return json.Marshal(r)
}

// EncodeIndent is Encode with indentation, for tool output.
func EncodeIndent(r Result) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
