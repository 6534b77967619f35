// Package netx holds the connection plumbing shared by the gopher and gemini
// transports: dialing with a connect timeout, cancellation, bounded reads and
// error classification.
package netx

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
)

// Dialer abstracts [*net.Dialer] so tests can stub the network.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Connector opens TCP connections with a connect timeout and logs each attempt.
//
// Fields may be changed after construction but not concurrently with Connect.
type Connector struct {
	Dialer  Dialer
	Logger  *slog.Logger
	Timeout time.Duration
	TimeNow func() time.Time
}

// NewConnector returns a Connector using a zero [net.Dialer].
func NewConnector(logger *slog.Logger, timeout time.Duration) *Connector {
	return &Connector{
		Dialer:  &net.Dialer{},
		Logger:  logger,
		Timeout: timeout,
		TimeNow: time.Now,
	}
}

// Connect dials address over TCP. The returned conn is closed when ctx is
// done. Failures are returned as *apperr.Error at StageConnect.
func (c *Connector) Connect(ctx context.Context, address string) (net.Conn, error) {
	dialCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	t0 := c.TimeNow()
	deadline, _ := dialCtx.Deadline()
	c.Logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)

	conn, err := c.Dialer.DialContext(dialCtx, "tcp", address)

	c.Logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", "tcp"),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", c.TimeNow()),
	)

	if err != nil {
		return nil, ConnectError(ctx, address, err)
	}
	return WatchCancel(ctx, conn), nil
}

// WithLogger returns a copy of c that logs to logger, typically one carrying
// a span id.
func (c *Connector) WithLogger(logger *slog.Logger) *Connector {
	cc := *c
	cc.Logger = logger
	return &cc
}
