package models

import "encoding/json"

// MIMEType is a parsed gemini success header.
type MIMEType struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Charset string `json:"charset"`
	Lang    string `json:"lang,omitempty"`
}

// Full returns type/subtype.
func (m MIMEType) Full() string { return m.Type + "/" + m.Subtype }

// IsText reports a text/* type.
func (m MIMEType) IsText() bool { return m.Type == "text" }

// IsGemtext reports text/gemini.
func (m MIMEType) IsGemtext() bool { return m.Type == "text" && m.Subtype == "gemini" }

// LineType tags a gemtext line.
type LineType string

const (
	LineText         LineType = "text"
	LineLink         LineType = "link"
	LineHeading      LineType = "heading"
	LineListItem     LineType = "list"
	LineQuote        LineType = "quote"
	LinePreToggle    LineType = "preformat_toggle"
	LinePreformatted LineType = "preformatted"
)

// Line is one gemtext line. Fields beyond Type and Text depend on Type.
type Line struct {
	Type LineType `json:"type"`
	// Text is the display text: heading text, link label (or URL), list or
	// quote text, preformatted content, alt text of a toggle, or paragraph.
	Text  string `json:"text"`
	Level int    `json:"level,omitempty"`
	URL   string `json:"url,omitempty"`
	// Label is the link label as written; empty when the link has none.
	Label string `json:"label,omitempty"`
}

// Link is a link line lifted out of a document.
type Link struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
	// Resolved is URL made absolute against the request URL.
	Resolved string `json:"resolved,omitempty"`
}

// Document is a parsed gemtext body.
type Document struct {
	// Title is the text of the first level-1 heading, if any.
	Title string `json:"title,omitempty"`
	Lines []Line `json:"lines"`
	Links []Link `json:"links"`
}

// GemtextResult is a text/gemini success response.
type GemtextResult struct {
	Document Document    `json:"document"`
	Raw      string      `json:"rawContent"`
	Charset  string      `json:"charset"`
	Lang     string      `json:"lang,omitempty"`
	Size     int         `json:"size"`
	Info     RequestInfo `json:"requestInfo"`
}

func (GemtextResult) Kind() Kind { return KindGemtext }
func (r GemtextResult) Request() RequestInfo { return r.Info }
func (r GemtextResult) isResult() {}
func (r GemtextResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r GemtextResult) MarshalJSON() ([]byte, error) {
	type plain GemtextResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindGemtext, plain(r)})
}

// SuccessResult is a non-gemtext success response. Text is populated only
// for text/* types; other bodies are reported by size.
type SuccessResult struct {
	MIMEType MIMEType    `json:"mimeType"`
	Text     string      `json:"text,omitempty"`
	Size     int         `json:"size"`
	Info     RequestInfo `json:"requestInfo"`
}

func (SuccessResult) Kind() Kind { return KindSuccess }
func (r SuccessResult) Request() RequestInfo { return r.Info }
func (r SuccessResult) isResult() {}
func (r SuccessResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r SuccessResult) MarshalJSON() ([]byte, error) {
	type plain SuccessResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindSuccess, plain(r)})
}

// InputResult is a 1x response asking the caller for input.
type InputResult struct {
	Status    int         `json:"status"`
	Prompt    string      `json:"prompt"`
	Sensitive bool        `json:"sensitive"`
	Info      RequestInfo `json:"requestInfo"`
}

func (InputResult) Kind() Kind { return KindInput }
func (r InputResult) Request() RequestInfo { return r.Info }
func (r InputResult) isResult() {}
func (r InputResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r InputResult) MarshalJSON() ([]byte, error) {
	type plain InputResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindInput, plain(r)})
}

// RedirectResult is a 3x response. Redirects are never followed.
type RedirectResult struct {
	Status int `json:"status"`
	// Target is the meta string as sent; NewURL is it resolved against the request.
	Target    string      `json:"target"`
	NewURL    string      `json:"newUrl"`
	Permanent bool        `json:"permanent"`
	Info      RequestInfo `json:"requestInfo"`
}

func (RedirectResult) Kind() Kind { return KindRedirect }
func (r RedirectResult) Request() RequestInfo { return r.Info }
func (r RedirectResult) isResult() {}
func (r RedirectResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r RedirectResult) MarshalJSON() ([]byte, error) {
	type plain RedirectResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindRedirect, plain(r)})
}

// FailureResult is a 4x or 5x response: the exchange worked, the outcome is negative.
type FailureResult struct {
	Status    int         `json:"status"`
	Message   string      `json:"message"`
	Temporary bool        `json:"temporary"`
	Info      RequestInfo `json:"requestInfo"`
}

func (FailureResult) Kind() Kind { return KindFailure }
func (r FailureResult) Request() RequestInfo { return r.Info }
func (r FailureResult) isResult() {}
func (r FailureResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r FailureResult) MarshalJSON() ([]byte, error) {
	type plain FailureResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindFailure, plain(r)})
}

// CertificateResult is a 6x response.
type CertificateResult struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	// Required is set for 60; Rejected for 61 and 62.
	Required bool        `json:"required"`
	Rejected bool        `json:"rejected"`
	Info     RequestInfo `json:"requestInfo"`
}

func (CertificateResult) Kind() Kind { return KindCertificate }
func (r CertificateResult) Request() RequestInfo { return r.Info }
func (r CertificateResult) isResult() {}
func (r CertificateResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r CertificateResult) MarshalJSON() ([]byte, error) {
	type plain CertificateResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindCertificate, plain(r)})
}
