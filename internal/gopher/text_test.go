package gopher

import (
	"testing"

	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeText_UTF8AndTerminator(t *testing.T) {
	text, charset, err := DecodeText([]byte("héllo\r\n..dotted\r\n.\r\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", charset)
	assert.Equal(t, "héllo\n.dotted\n", text)
}

func TestDecodeText_NoTerminatorUnchanged(t *testing.T) {
	text, _, err := DecodeText([]byte("a\n..b\n\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "a\n..b\n\n", text)
}

func TestDecodeText_NULIsEncodingError(t *testing.T) {
	_, _, err := DecodeText([]byte("ab\x00cd"), nil)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeEncoding, apperr.CodeOf(err))
	e, _ := apperr.As(err)
	assert.Equal(t, apperr.CategoryProtocol, e.Category())
	assert.False(t, e.Transient())
}

func TestDecodeText_InvalidUTF8Substituted(t *testing.T) {
	text, charset, err := DecodeText([]byte("caf\xe9"), nil)
	require.NoError(t, err)
	assert.Equal(t, "utf-8", charset)
	assert.Equal(t, "caf\uFFFD", text)
}

func TestDecodeText_FallbackCharset(t *testing.T) {
	cs, err := LookupCharset("latin1")
	require.NoError(t, err)
	text, charset, err := DecodeText([]byte("caf\xe9"), cs)
	require.NoError(t, err)
	assert.Equal(t, "café", text)
	assert.Equal(t, cs.Name, charset)
}

func TestLookupCharset_Unknown(t *testing.T) {
	_, err := LookupCharset("klingon-8")
	assert.Error(t, err)
}

func TestGuessMIME(t *testing.T) {
	assert.Equal(t, "image/gif", GuessMIME('g', "/pic", nil))
	assert.Equal(t, "image/png", GuessMIME('I', "/pic.png", nil))
	assert.Equal(t, "application/gzip", GuessMIME('9', "/a.tar.gz", nil))
	assert.Equal(t, "application/pdf", GuessMIME('9', "/doc", []byte("%PDF-1.4\n")))
	assert.Equal(t, "application/octet-stream", GuessMIME('9', "/blob", []byte{0x00, 0x01, 0x02}))
}
