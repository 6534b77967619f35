package address

import (
	"fmt"
	"net/url"
	"strings"
)

// Gopher item types.
const (
	TypeText     byte = '0'
	TypeMenu     byte = '1'
	TypeCSO      byte = '2'
	TypeError    byte = '3'
	TypeBinHex   byte = '4'
	TypeDOS      byte = '5'
	TypeUUEncode byte = '6'
	TypeSearch   byte = '7'
	TypeTelnet   byte = '8'
	TypeBinary   byte = '9'
	TypeMirror   byte = '+'
	TypeGIF      byte = 'g'
	TypeImage    byte = 'I'
	TypeTN3270   byte = 'T'
	TypeHTML     byte = 'h'
	TypeInfo     byte = 'i'
	TypeSound    byte = 's'
	TypeMovie    byte = ';'
	TypeDocument byte = 'd'
	TypePNG      byte = 'p'
	TypePDF      byte = 'P'
)

// Kind is how a response for an item type is interpreted.
type Kind int

const (
	KindUnknown Kind = iota
	KindMenu
	KindText
	KindBinary
	// KindNonFetchable covers types that name no retrievable document.
	KindNonFetchable
)

var itemKinds = map[byte]Kind{
	TypeText: KindText, TypeHTML: KindText,
	TypeMenu: KindMenu, TypeSearch: KindMenu, TypeMirror: KindMenu,
	TypeBinHex: KindBinary, TypeDOS: KindBinary, TypeUUEncode: KindBinary,
	TypeBinary: KindBinary, TypeGIF: KindBinary, TypeImage: KindBinary,
	TypeSound: KindBinary, TypeMovie: KindBinary, TypeDocument: KindBinary,
	TypePNG: KindBinary, TypePDF: KindBinary,
	TypeCSO: KindNonFetchable, TypeError: KindNonFetchable, TypeTelnet: KindNonFetchable,
	TypeTN3270: KindNonFetchable, TypeInfo: KindNonFetchable,
}

// ItemKind classifies an item type code.
func ItemKind(t byte) Kind {
	return itemKinds[t]
}

// IsItemType reports whether t is a recognized item type code.
func IsItemType(t byte) bool {
	return itemKinds[t] != KindUnknown
}

// Gopher is a parsed gopher:// address.
type Gopher struct {
	Host     string
	Port     uint16
	ItemType byte
	Selector string
	// Search is the search term for type 7 items; HasSearch tells an empty
	// term apart from no term.
	Search    string
	HasSearch bool
}

// ParseGopher parses raw into a Gopher address.
//
// An empty path selects the root menu. When the first path character is a
// recognized item type it is split off; otherwise the path is a menu selector.
// A search term is taken from the query or from a %09 inside the path.
func ParseGopher(raw string, limits Limits) (Gopher, error) {
	limits = limits.normalized()
	u, host, port, err := parseAuthority(raw, "gopher", GopherPort)
	if err != nil {
		return Gopher{}, err
	}

	path := strings.TrimPrefix(u.Path, "/")
	if u.Fragment != "" {
		path += "#" + u.Fragment
	}

	g := Gopher{Host: host, Port: port, ItemType: TypeMenu}
	if path != "" {
		if IsItemType(path[0]) {
			g.ItemType = path[0]
			path = path[1:]
		}
	}

	if sel, search, ok := strings.Cut(path, "\t"); ok {
		path = sel
		g.Search, g.HasSearch = search, true
	}
	if u.RawQuery != "" || u.ForceQuery {
		q, err := url.PathUnescape(u.RawQuery)
		if err != nil {
			return Gopher{}, invalid(raw, "malformed search: %v", err)
		}
		g.Search, g.HasSearch = q, true
	}
	g.Selector = path

	if err := g.validate(limits); err != nil {
		return Gopher{}, invalid(raw, "%v", err)
	}
	return g, nil
}

func (g Gopher) validate(limits Limits) error {
	if len(g.Selector) > limits.MaxSelector {
		return fmt.Errorf("selector too long: %d bytes (max %d)", len(g.Selector), limits.MaxSelector)
	}
	if len(g.Search) > limits.MaxQuery {
		return fmt.Errorf("search too long: %d bytes (max %d)", len(g.Search), limits.MaxQuery)
	}
	if err := checkControl("selector", g.Selector); err != nil {
		return err
	}
	return checkControl("search", g.Search)
}

// HostPort returns host:port for dialing.
func (g Gopher) HostPort() string {
	return hostPort(g.Host, g.Port)
}

// String formats the canonical URL. Parsing it yields an equal Gopher.
func (g Gopher) String() string {
	var b strings.Builder
	b.WriteString("gopher://")
	b.WriteString(authority(g.Host, g.Port, GopherPort))
	b.WriteString(escapePath("/" + string(g.ItemType) + g.Selector))
	if g.HasSearch {
		b.WriteString("%09")
		b.WriteString(url.PathEscape(g.Search))
	}
	return b.String()
}

// RequestLine is the line sent to the server, without CRLF.
func (g Gopher) RequestLine() string {
	if g.HasSearch && g.ItemType == TypeSearch {
		return g.Selector + "\t" + g.Search
	}
	return g.Selector
}

// CacheKey serializes every request-shaping component.
func (g Gopher) CacheKey() string {
	search := ""
	if g.HasSearch {
		search = "?" + g.Search
	}
	return fmt.Sprintf("gopher\x00%s\x00%d\x00%c\x00%s\x00%s", g.Host, g.Port, g.ItemType, g.Selector, search)
}

// FormatGopher builds the URL for a menu item.
func FormatGopher(host string, port uint16, itemType byte, selector string) string {
	return Gopher{Host: strings.ToLower(host), Port: port, ItemType: itemType, Selector: selector}.String()
}
