package gopher

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/starford/gopher-mcp/internal/address"
	"github.com/starford/gopher-mcp/internal/models"
)

const urlSelectorPrefix = "URL:"

// ParseMenu parses a menu body into items in source order. Lines that cannot
// be split into type+title, selector, host and port are kept with ParseError
// set; the returned count is how many such lines there were.
func ParseMenu(body string) ([]models.MenuItem, int) {
	items := []models.MenuItem{}
	malformed := 0
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || line == "." {
			continue
		}
		item := parseMenuLine(line)
		if item.ParseError != "" {
			malformed++
		}
		items = append(items, item)
	}
	return items, malformed
}

func parseMenuLine(line string) models.MenuItem {
	itemType := line[0]
	fields := strings.Split(line[1:], "\t")
	item := models.MenuItem{Type: string(itemType), Title: fields[0]}

	if len(fields) < 4 {
		item.ParseError = fmt.Sprintf("expected 4 tab-separated fields, got %d", len(fields))
		return item
	}
	item.Selector = fields[1]
	item.Host = strings.TrimSpace(fields[2])

	port, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if itemType == address.TypeInfo || itemType == address.TypeError {
		// Info and error lines carry placeholder hosts and ports such as
		// "(NULL)" and 0.
		if err == nil && port >= 0 && port <= 65535 {
			item.Port = port
		}
		return item
	}
	if err != nil || port < 1 || port > 65535 {
		item.ParseError = fmt.Sprintf("invalid port %q", fields[3])
		return item
	}
	item.Port = port
	item.NextURL = nextURL(itemType, item.Selector, item.Host, uint16(port))
	return item
}

// nextURL returns the address a client would follow for an item, or "" for
// items that name nothing to fetch.
func nextURL(itemType byte, selector, host string, port uint16) string {
	switch itemType {
	case address.TypeInfo, address.TypeError:
		return ""
	case address.TypeHTML:
		if strings.HasPrefix(selector, urlSelectorPrefix) {
			return selector[len(urlSelectorPrefix):]
		}
	case address.TypeTelnet:
		return "telnet://" + net.JoinHostPort(host, strconv.Itoa(int(port)))
	case address.TypeTN3270:
		return "tn3270://" + net.JoinHostPort(host, strconv.Itoa(int(port)))
	}
	if host == "" {
		return ""
	}
	return address.FormatGopher(host, port, itemType, selector)
}
