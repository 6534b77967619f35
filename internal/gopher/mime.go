package gopher

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/starford/gopher-mcp/internal/address"
)

const octetStream = "application/octet-stream"

var typeMIME = map[byte]string{
	address.TypeText:     "text/plain",
	address.TypeMenu:     "text/gopher-menu",
	address.TypeSearch:   "text/gopher-menu",
	address.TypeHTML:     "text/html",
	address.TypeBinHex:   "application/mac-binhex40",
	address.TypeDOS:      "application/zip",
	address.TypeUUEncode: "application/x-uuencoded",
	address.TypeBinary:   octetStream,
	address.TypeGIF:      "image/gif",
	address.TypeImage:    "image/jpeg",
	address.TypePNG:      "image/png",
	address.TypePDF:      "application/pdf",
	address.TypeSound:    "audio/basic",
	address.TypeMovie:    "video/mpeg",
	address.TypeDocument: octetStream,
}

var extMIME = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
}

// GuessMIME derives a MIME type from the item type, refined by the selector
// extension and, for generic types, by sniffing the first bytes of the body.
func GuessMIME(itemType byte, selector string, head []byte) string {
	guess, ok := typeMIME[itemType]
	if !ok {
		guess = octetStream
	}

	if ext := strings.ToLower(path.Ext(selector)); ext != "" {
		if m, ok := extMIME[ext]; ok {
			guess = m
		} else if m := mime.TypeByExtension(ext); m != "" && guess == octetStream {
			guess = m
		}
	}

	if guess == octetStream && len(head) > 0 {
		if sniffed := http.DetectContentType(head); sniffed != octetStream {
			guess = sniffed
		}
	}
	return guess
}
