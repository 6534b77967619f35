// Package apperr defines the fetch error taxonomy shared by both protocols.
package apperr

import (
	"errors"
	"fmt"
)

// Category groups codes into the four failure families a caller can act on.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryTransport  Category = "transport"
	CategoryTrust      Category = "trust"
	CategoryProtocol   Category = "protocol"
)

// Code identifies a specific failure.
type Code string

// Validation codes.
const (
	CodeInvalidAddress      Code = "INVALID_ADDRESS"
	CodeHostNotAllowed      Code = "HOST_NOT_ALLOWED"
	CodeUnsupportedItemType Code = "UNSUPPORTED_ITEM_TYPE"
)

// Transport codes.
const (
	CodeConnectTimeout    Code = "CONNECT_TIMEOUT"
	CodeReadTimeout       Code = "READ_TIMEOUT"
	CodeConnectionRefused Code = "CONNECTION_REFUSED"
	CodeConnectFailed     Code = "CONNECT_FAILED"
	CodeResponseTooLarge  Code = "RESPONSE_TOO_LARGE"
	CodeTLSHandshake      Code = "TLS_HANDSHAKE_FAILED"
	CodeCancelled         Code = "CANCELLED"
	CodeIO                Code = "IO_ERROR"
)

// Trust codes.
const (
	CodeFingerprintMismatch Code = "FINGERPRINT_MISMATCH"
	CodeHostnameMismatch    Code = "HOSTNAME_MISMATCH"
	CodeTrustStore          Code = "TRUST_STORE_ERROR"
)

// Protocol codes.
const (
	CodeMalformedStatus  Code = "MALFORMED_STATUS"
	CodeStatusOutOfRange Code = "STATUS_OUT_OF_RANGE"
	CodeMalformedMenu    Code = "MALFORMED_MENU"
	CodeEncoding         Code = "ENCODING_ERROR"
)

// Category returns the family the code belongs to.
func (c Code) Category() Category {
	switch c {
	case CodeInvalidAddress, CodeHostNotAllowed, CodeUnsupportedItemType:
		return CategoryValidation
	case CodeFingerprintMismatch, CodeHostnameMismatch, CodeTrustStore:
		return CategoryTrust
	case CodeMalformedStatus, CodeStatusOutOfRange, CodeMalformedMenu, CodeEncoding:
		return CategoryProtocol
	default:
		return CategoryTransport
	}
}

// Transient reports whether retrying the same request may succeed.
func (c Code) Transient() bool {
	switch c {
	case CodeConnectTimeout, CodeReadTimeout, CodeConnectionRefused,
		CodeConnectFailed, CodeCancelled, CodeIO:
		return true
	}
	return false
}

// Stage names the step of a fetch at which a failure occurred.
type Stage string

const (
	StageParse     Stage = "parse"
	StagePolicy    Stage = "policy"
	StageConnect   Stage = "connect"
	StageHandshake Stage = "handshake"
	StageTrust     Stage = "trust"
	StageWrite     Stage = "write"
	StageRead      Stage = "read"
	StageDecode    Stage = "decode"
)

// Error is a classified fetch failure.
type Error struct {
	Code    Code
	Stage   Stage
	Address string
	// Class is the errclass label of the underlying cause, if any.
	Class string
	Err   error
}

// Error implements error.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s at %s", e.Code, e.Stage)
	if e.Address != "" {
		msg += " (" + e.Address + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Category returns the family of the error code.
func (e *Error) Category() Category { return e.Code.Category() }

// Transient reports whether the failure may clear up on retry.
func (e *Error) Transient() bool { return e.Code.Transient() }

// Is matches another *Error by code, so errors.Is(err, &Error{Code: X}) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && (t.Stage == "" || t.Stage == e.Stage)
}

// New builds an error with a formatted cause.
func New(code Code, stage Stage, format string, args ...any) *Error {
	return &Error{Code: code, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// Wrap builds an error around an existing cause.
func Wrap(code Code, stage Stage, err error) *Error {
	return &Error{Code: code, Stage: stage, Err: err}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, CodeIO for unclassified errors,
// or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeIO
}

// ErrNotFound is returned by store lookups that match nothing.
var ErrNotFound = errors.New("not found")
