package netx

import (
	"context"
	"net"
)

// WatchCancel closes conn as soon as ctx is done, so a blocked read or write
// returns promptly. Closing the returned conn stops the watch.
func WatchCancel(ctx context.Context, conn net.Conn) net.Conn {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}
}

type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
