// Package gopher implements the gopher transport, its menu and text
// decoders, and the fetcher that maps responses onto result variants.
package gopher

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/starford/gopher-mcp/internal/address"
	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/netx"
)

// Client performs one gopher exchange per call.
type Client struct {
	Connector *netx.Connector
	// Timeout bounds everything after connect: write, read, close.
	Timeout time.Duration
	// MaxResponse caps the bytes read for menus and text.
	MaxResponse int64
}

// NewClient returns a Client dialing with a [net.Dialer].
func NewClient(logger *slog.Logger, connectTimeout, timeout time.Duration, maxResponse int64) *Client {
	return &Client{
		Connector:   netx.NewConnector(logger, connectTimeout),
		Timeout:     timeout,
		MaxResponse: maxResponse,
	}
}

// Fetch sends the request line for addr and reads the response until the
// server closes the connection. When untilDot is set, reading also stops
// at a line containing a single ".".
func (c *Client) Fetch(ctx context.Context, addr address.Gopher, logger *slog.Logger, untilDot bool) ([]byte, error) {
	conn, err := c.open(ctx, addr, logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var data []byte
	if untilDot {
		data, err = readMenu(conn, c.MaxResponse)
	} else {
		data, err = netx.ReadAtMost(conn, c.MaxResponse)
	}
	logger.Info(
		"readDone",
		slog.Int("ioBytesCount", len(data)),
		slog.Any("err", err),
		slog.String("errClass", netx.Classify(err)),
		slog.String("remoteAddr", addr.HostPort()),
	)
	if err != nil {
		return nil, c.readError(ctx, addr, err)
	}
	return data, nil
}

// Probe sends the request line and reads at most n bytes, reporting whether
// the server had more to send. The rest of the body is never read.
func (c *Client) Probe(ctx context.Context, addr address.Gopher, logger *slog.Logger, n int) ([]byte, bool, error) {
	conn, err := c.open(ctx, addr, logger)
	if err != nil {
		return nil, false, err
	}
	defer conn.Close()

	head, more, err := netx.Probe(conn, n)
	logger.Info(
		"probeDone",
		slog.Int("ioBytesCount", len(head)),
		slog.Bool("more", more),
		slog.Any("err", err),
		slog.String("errClass", netx.Classify(err)),
		slog.String("remoteAddr", addr.HostPort()),
	)
	if err != nil {
		return nil, false, c.readError(ctx, addr, err)
	}
	return head, more, nil
}

func (c *Client) open(ctx context.Context, addr address.Gopher, logger *slog.Logger) (net.Conn, error) {
	conn, err := c.Connector.WithLogger(logger).Connect(ctx, addr.HostPort())
	if err != nil {
		return nil, err
	}
	if c.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(c.Timeout)); err != nil {
			conn.Close()
			return nil, netx.IOError(ctx, apperr.StageConnect, addr.HostPort(), err)
		}
	}
	if _, err := io.WriteString(conn, addr.RequestLine()+"\r\n"); err != nil {
		conn.Close()
		return nil, netx.IOError(ctx, apperr.StageWrite, addr.HostPort(), err)
	}
	return conn, nil
}

func (c *Client) readError(ctx context.Context, addr address.Gopher, err error) error {
	e := netx.IOError(ctx, apperr.StageRead, addr.HostPort(), err)
	if e.Address == "" {
		e.Address = addr.HostPort()
	}
	return e
}

var dotLine = []byte(".")

// readMenu reads lines until EOF or a lone "." line, keeping at most limit bytes.
func readMenu(r io.Reader, limit int64) ([]byte, error) {
	br := bufio.NewReader(io.LimitReader(r, limit+1))
	var out bytes.Buffer
	for {
		line, err := br.ReadBytes('\n')
		if bytes.Equal(bytes.TrimRight(line, "\r\n"), dotLine) {
			return out.Bytes(), nil
		}
		out.Write(line)
		if int64(out.Len()) > limit {
			return nil, apperr.Wrap(apperr.CodeResponseTooLarge, apperr.StageRead, netx.ErrTooLarge)
		}
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, err
		}
	}
}
