package models

import "encoding/json"

// MenuItem is one line of a gopher menu, in source order.
type MenuItem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Selector string `json:"selector"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	// NextURL is empty for info and error lines and for unparseable lines.
	NextURL string `json:"nextUrl,omitempty"`
	// ParseError is set when the line could not be split into its fields.
	ParseError string `json:"parseError,omitempty"`
}

// MenuResult is a parsed gopher menu or search response.
type MenuResult struct {
	Items []MenuItem `json:"items"`
	// Malformed counts items carrying ParseError.
	Malformed int         `json:"malformed,omitempty"`
	Info      RequestInfo `json:"requestInfo"`
}

func (MenuResult) Kind() Kind { return KindMenu }
func (r MenuResult) Request() RequestInfo { return r.Info }
func (r MenuResult) isResult() {}
func (r MenuResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r MenuResult) MarshalJSON() ([]byte, error) {
	type plain MenuResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindMenu, plain(r)})
}

// TextResult is a gopher text document.
type TextResult struct {
	Charset string      `json:"charset"`
	Bytes   int         `json:"bytes"`
	Text    string      `json:"text"`
	Info    RequestInfo `json:"requestInfo"`
}

func (TextResult) Kind() Kind { return KindText }
func (r TextResult) Request() RequestInfo { return r.Info }
func (r TextResult) isResult() {}
func (r TextResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r TextResult) MarshalJSON() ([]byte, error) {
	type plain TextResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindText, plain(r)})
}

// BinaryNote explains why binary results carry no content.
const BinaryNote = "Binary content not returned to preserve context"

// BinaryResult describes a binary item without its body.
type BinaryResult struct {
	ItemType string `json:"itemType"`
	// Bytes is the number of bytes read by the probe.
	Bytes int `json:"bytes"`
	// Truncated is true when the server had more data than the probe read.
	Truncated bool        `json:"truncated"`
	MIMEType  string      `json:"mimeType,omitempty"`
	Note      string      `json:"note"`
	Info      RequestInfo `json:"requestInfo"`
}

func (BinaryResult) Kind() Kind { return KindBinary }
func (r BinaryResult) Request() RequestInfo { return r.Info }
func (r BinaryResult) isResult() {}
func (r BinaryResult) WithRequest(info RequestInfo) Result {
	r.Info = info
	return r
}

// MarshalJSON adds the kind discriminator.
func (r BinaryResult) MarshalJSON() ([]byte, error) {
	type plain BinaryResult
	return json.Marshal(struct {
		Kind Kind `json:"kind"`
		plain
	}{KindBinary, plain(r)})
}
