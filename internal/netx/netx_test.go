package netx

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/google/uuid"
	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Connect returns a conn and emits connectStart/connectDone.
func TestConnectLogsAndReturnsConn(t *testing.T) {
	logger, records := newCapturingLogger()
	c := NewConnector(logger, time.Second)
	c.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			assert.Equal(t, "tcp", network)
			assert.Equal(t, "example.com:70", address)
			return newMinimalConn(), nil
		},
	}

	conn, err := c.Connect(context.Background(), "example.com:70")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	require.Len(t, *records, 2)
	assert.Equal(t, "connectStart", (*records)[0].Message)
	assert.Equal(t, "connectDone", (*records)[1].Message)
}

// Connect bounds the dial by the connect timeout.
func TestConnectAppliesTimeout(t *testing.T) {
	logger, _ := newCapturingLogger()
	c := NewConnector(logger, 5*time.Second)
	c.Dialer = &netstub.FuncDialer{
		DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.True(t, time.Until(deadline) <= 5*time.Second)
			return nil, errors.New("expected")
		},
	}
	_, err := c.Connect(context.Background(), "example.com:70")
	require.Error(t, err)
}

func TestConnectErrorCodes(t *testing.T) {
	tests := []struct {
		// name describes the scenario.
		name string

		// dial is the stubbed dial behavior.
		dial func(ctx context.Context) error

		// cancelFirst cancels the caller context before connecting.
		cancelFirst bool

		// want is the expected code.
		want apperr.Code
	}{
		{
			name: "refused",
			dial: func(ctx context.Context) error {
				return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
			},
			want: apperr.CodeConnectionRefused,
		},
		{
			name: "timeout",
			dial: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
			want: apperr.CodeConnectTimeout,
		},
		{
			name: "cancelled",
			dial: func(ctx context.Context) error {
				return ctx.Err()
			},
			cancelFirst: true,
			want:        apperr.CodeCancelled,
		},
		{
			name: "other",
			dial: func(ctx context.Context) error {
				return errors.New("no route")
			},
			want: apperr.CodeConnectFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := newCapturingLogger()
			c := NewConnector(logger, 20*time.Millisecond)
			c.Dialer = &netstub.FuncDialer{
				DialContextFunc: func(ctx context.Context, network, address string) (net.Conn, error) {
					return nil, tt.dial(ctx)
				},
			}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancelFirst {
				cancel()
			}

			conn, err := c.Connect(ctx, "example.com:70")
			require.Error(t, err)
			assert.Nil(t, conn)

			e, ok := apperr.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, e.Code)
			assert.Equal(t, apperr.StageConnect, e.Stage)
			assert.Equal(t, "example.com:70", e.Address)
			assert.Equal(t, apperr.CategoryTransport, e.Category())
			assert.True(t, e.Transient())
		})
	}
}

// Cancelling the context closes the underlying conn.
func TestWatchCancelClosesOnCancel(t *testing.T) {
	done := make(chan struct{}, 1)
	mock := &netstub.FuncConn{
		CloseFunc: func() error {
			done <- struct{}{}
			return nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	WatchCancel(ctx, mock)

	select {
	case <-done:
		t.Fatal("closed before cancel")
	default:
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("conn not closed after cancel")
	}
}

// Closing the wrapper stops the watch, so a later cancel does not close twice.
func TestWatchCancelCloseStopsWatch(t *testing.T) {
	closes := 0
	mock := &netstub.FuncConn{
		CloseFunc: func() error {
			closes++
			return nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	conn := WatchCancel(ctx, mock)
	require.NoError(t, conn.Close())
	cancel()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, closes)
}

func TestReadAtMost(t *testing.T) {
	data, err := ReadAtMost(strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	src := strings.NewReader(strings.Repeat("x", 1000))
	_, err = ReadAtMost(src, 10)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeResponseTooLarge, apperr.CodeOf(err))
	assert.ErrorIs(t, err, ErrTooLarge)
	// At most limit+1 bytes were consumed.
	assert.Equal(t, 1000-11, src.Len())
}

func TestProbe(t *testing.T) {
	head, more, err := Probe(strings.NewReader("abc"), 8)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(head))
	assert.False(t, more)

	head, more, err = Probe(strings.NewReader("abcdefghij"), 4)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(head))
	assert.True(t, more)
}

func TestIOError(t *testing.T) {
	bg := context.Background()

	e := IOError(bg, apperr.StageRead, "h:1", os.ErrDeadlineExceeded)
	assert.Equal(t, apperr.CodeReadTimeout, e.Code)

	e = IOError(bg, apperr.StageWrite, "h:1", errors.New("broken pipe"))
	assert.Equal(t, apperr.CodeIO, e.Code)
	assert.Equal(t, apperr.StageWrite, e.Stage)

	cancelled, cancel := context.WithCancel(bg)
	cancel()
	e = IOError(cancelled, apperr.StageRead, "h:1", net.ErrClosed)
	assert.Equal(t, apperr.CodeCancelled, e.Code)

	orig := apperr.New(apperr.CodeResponseTooLarge, apperr.StageRead, "big")
	assert.Same(t, orig, IOError(bg, apperr.StageRead, "h:1", orig))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "", Classify(nil))
	assert.NotEmpty(t, Classify(errors.New("boom")))
}

func TestNewSpanID(t *testing.T) {
	id, err := uuid.Parse(NewSpanID())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, NewSpanID(), NewSpanID())
}
