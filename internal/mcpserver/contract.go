package mcpserver

// ResultFormatURI is the resource describing ResultFormat.
const ResultFormatURI = "gopher-mcp://result-format"

// ResultFormat documents the JSON returned by gopher_fetch and gemini_fetch.
const ResultFormat = `# gopher-mcp Result Format

Every tool call returns one JSON object. The ` + "`kind`" + ` field names its shape
and ` + "`requestInfo`" + ` records the URL actually fetched (after port and item
type defaulting), the protocol, a timestamp, and ` + "`cached`" + ` when served
from the cache.

## gopher_fetch

| kind   | fields |
|--------|--------|
| menu   | ` + "`items[]`" + ` with type, title, selector, host, port, nextUrl, parseError; ` + "`malformed`" + ` count |
| text   | ` + "`text`, `charset`, `bytes`" + ` |
| binary | ` + "`itemType`, `bytes`, `truncated`, `mimeType`, `note`" + `; content is never returned |

Menu lines that cannot be parsed are kept with a ` + "`parseError`" + ` marker.
Follow a menu item by fetching its ` + "`nextUrl`" + `. Info (i) and error (3)
lines have none.

## gemini_fetch

| kind        | fields |
|-------------|--------|
| gemtext     | ` + "`document.title`, `document.lines[]`, `document.links[]`, `rawContent`, `charset`, `lang`, `size`" + ` |
| success     | ` + "`mimeType`, `text`" + ` (text/* only), ` + "`size`" + ` |
| input       | ` + "`status`" + ` 10 or 11, ` + "`prompt`, `sensitive`" + `; resend with the answer as the query |
| redirect    | ` + "`status`, `target`, `newUrl`, `permanent`" + `; redirects are not followed |
| failure     | ` + "`status`" + ` 40-59, ` + "`message`, `temporary`" + ` |
| certificate | ` + "`status`" + ` 60-62, ` + "`message`, `required`, `rejected`" + ` |

Gemtext line types: text, link, heading (level 1-3), list, quote,
preformat_toggle, preformatted.

## Errors

` + "`kind: error`" + ` carries ` + "`error.category`" + ` (validation, transport, trust,
protocol), ` + "`error.code`" + `, ` + "`error.stage`" + `, and ` + "`error.transient`" + `.
Transient errors (timeouts, refused connections) may be retried; the others
will fail the same way again. A FINGERPRINT_MISMATCH means the server's
certificate changed since it was first seen; trust is reset only by an
operator.
`
