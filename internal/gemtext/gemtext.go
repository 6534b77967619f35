// Package gemtext parses text/gemini bodies into a line sequence.
//
// Parsing is total: every input line yields exactly one output line and
// unrecognized prefixes become paragraphs.
package gemtext

import (
	"net/url"
	"strings"

	"github.com/starford/gopher-mcp/internal/models"
)

const (
	fence       = "```"
	linkPrefix  = "=>"
	listPrefix  = "* "
	quotePrefix = ">"
	maxLevel    = 3
)

// Parse parses body. Link URLs are resolved against base when base is
// non-nil; relative links that fail to resolve keep an empty Resolved.
func Parse(body string, base *url.URL) models.Document {
	lines := splitLines(body)
	doc := models.Document{
		Lines: make([]models.Line, 0, len(lines)),
		Links: []models.Link{},
	}

	pre := false
	for _, raw := range lines {
		if strings.HasPrefix(raw, fence) {
			pre = !pre
			doc.Lines = append(doc.Lines, models.Line{
				Type: models.LinePreToggle,
				Text: strings.TrimSpace(raw[len(fence):]),
			})
			continue
		}
		if pre {
			doc.Lines = append(doc.Lines, models.Line{Type: models.LinePreformatted, Text: raw})
			continue
		}

		line := parseLine(raw)
		doc.Lines = append(doc.Lines, line)
		if line.Type == models.LineLink {
			doc.Links = append(doc.Links, models.Link{
				URL:      line.URL,
				Label:    line.Label,
				Resolved: resolve(base, line.URL),
			})
		}
	}

	doc.Title = deriveTitle(doc.Lines)
	return doc
}

// splitLines splits on LF, dropping a trailing CR from each line. A final
// newline does not produce an extra empty line.
func splitLines(body string) []string {
	if body == "" {
		return nil
	}
	body = strings.TrimSuffix(body, "\n")
	parts := strings.Split(body, "\n")
	for i, p := range parts {
		parts[i] = strings.TrimSuffix(p, "\r")
	}
	return parts
}

func parseLine(raw string) models.Line {
	switch {
	case strings.HasPrefix(raw, linkPrefix):
		if l, ok := parseLink(raw[len(linkPrefix):]); ok {
			return l
		}
	case strings.HasPrefix(raw, "#"):
		if l, ok := parseHeading(raw); ok {
			return l
		}
	case strings.HasPrefix(raw, listPrefix):
		return models.Line{Type: models.LineListItem, Text: strings.TrimSpace(raw[len(listPrefix):])}
	case strings.HasPrefix(raw, quotePrefix):
		return models.Line{Type: models.LineQuote, Text: strings.TrimSpace(raw[len(quotePrefix):])}
	}
	return models.Line{Type: models.LineText, Text: raw}
}

// parseHeading accepts one or more '#' followed by a space. Runs longer than
// three are level 3.
func parseHeading(raw string) (models.Line, bool) {
	n := 0
	for n < len(raw) && raw[n] == '#' {
		n++
	}
	if n == len(raw) || (raw[n] != ' ' && raw[n] != '\t') {
		return models.Line{}, false
	}
	return models.Line{
		Type:  models.LineHeading,
		Level: min(n, maxLevel),
		Text:  strings.TrimSpace(raw[n:]),
	}, true
}

// parseLink splits "URL [label]" on the first run of whitespace.
func parseLink(rest string) (models.Line, bool) {
	rest = strings.TrimLeft(rest, " \t")
	if rest == "" {
		return models.Line{}, false
	}
	target, label := rest, ""
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		target, label = rest[:i], strings.TrimSpace(rest[i:])
	}
	text := label
	if text == "" {
		text = target
	}
	return models.Line{Type: models.LineLink, URL: target, Label: label, Text: text}, true
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		if u.IsAbs() {
			return u.String()
		}
		return ""
	}
	return base.ResolveReference(u).String()
}

// deriveTitle returns the first level-1 heading, otherwise empty string.
func deriveTitle(lines []models.Line) string {
	for _, l := range lines {
		if l.Type == models.LineHeading && l.Level == 1 {
			return l.Text
		}
	}
	return ""
}
