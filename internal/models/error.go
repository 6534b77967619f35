package models

import (
	"encoding/json"

	"github.com/starford/gopher-mcp/internal/apperr"
)

// ErrorInfo is the structured form of an apperr.Error.
type ErrorInfo struct {
	Category  apperr.Category `json:"category"`
	Code      apperr.Code     `json:"code"`
	Stage     apperr.Stage    `json:"stage"`
	Class     string          `json:"class,omitempty"`
	Transient bool            `json:"transient"`
	Message   string          `json:"message"`
}

// ErrorResult reports a local, transport, trust or protocol failure.
type ErrorResult struct {
	Error ErrorInfo   `json:"error"`
	Info  RequestInfo `json:"requestInfo"`
}

// NewErrorResult converts err into an ErrorResult. Unclassified errors are
// reported as transport IO errors.
func NewErrorResult(err error, info RequestInfo) ErrorResult {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Wrap(apperr.CodeIO, apperr.StageRead, err)
	}
	return ErrorResult{
		Error: ErrorInfo{
			Category:  e.Category(),
			Code:      e.Code,
			Stage:     e.Stage,
			Class:     e.Class,
			Transient: e.Transient(),
			Message:   err.Error(),
		},
		Info: info,
	}
}

func (ErrorResult) Kind() Kind { return KindError }
func (r ErrorResult) Request() RequestInfo { return r.Info }
func (r ErrorResult) isResult() {}
func (r ErrorResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r ErrorResult) MarshalJSON() ([]byte, error) {
	type plain ErrorResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindError, plain(r)})
}
