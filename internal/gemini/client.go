package gemini

import (
	"bufio"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/safeconn"
	"github.com/starford/gopher-mcp/internal/address"
	"github.com/starford/gopher-mcp/internal/apperr"
	"github.com/starford/gopher-mcp/internal/certs"
	"github.com/starford/gopher-mcp/internal/checksum"
	"github.com/starford/gopher-mcp/internal/models"
	"github.com/starford/gopher-mcp/internal/netx"
	"github.com/starford/gopher-mcp/internal/tofu"
)

// headerBufferSize fits "NN " + 1024 bytes of meta + CRLF.
const headerBufferSize = 2048

// Response is one completed exchange. Body is only read for 2x statuses.
type Response struct {
	Header      Header
	Body        []byte
	Fingerprint string
	Trust       tofu.Outcome
}

// Client performs one gemini exchange per call.
//
// Fields may be changed after construction but not concurrently with Do.
type Client struct {
	Connector *netx.Connector
	// Timeout bounds everything after connect: handshake, write, read.
	Timeout     time.Duration
	MaxResponse int64
	Verifier    tofu.Verifier
	Certs       certs.Provider
	// VerifyHostname additionally checks the peer leaf against the host name.
	VerifyHostname bool
	Notifier       models.Notifier
}

// NewClient returns a Client with TOFU and client certificates disabled.
func NewClient(logger *slog.Logger, connectTimeout, timeout time.Duration, maxResponse int64) *Client {
	return &Client{
		Connector:   netx.NewConnector(logger, connectTimeout),
		Timeout:     timeout,
		MaxResponse: maxResponse,
		Verifier:    tofu.Disabled{},
		Certs:       certs.Disabled{},
		Notifier:    models.NopNotifier{},
	}
}

// Do connects to addr, completes the TLS handshake, checks the peer
// certificate against the trust store and, only if trusted, sends the
// request and reads the response.
func (c *Client) Do(ctx context.Context, addr address.Gemini, logger *slog.Logger) (*Response, error) {
	hostPort := addr.HostPort()
	raw, err := c.Connector.WithLogger(logger).Connect(ctx, hostPort)
	if err != nil {
		return nil, err
	}
	defer raw.Close()

	if c.Timeout > 0 {
		if err := raw.SetDeadline(time.Now().Add(c.Timeout)); err != nil {
			return nil, netx.IOError(ctx, apperr.StageConnect, hostPort, err)
		}
	}

	conn, leaf, err := c.handshake(ctx, raw, addr, logger)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	resp := &Response{Fingerprint: checksum.Fingerprint(leaf)}
	if resp.Trust, err = c.trust(ctx, addr, leaf, logger); err != nil {
		return nil, err
	}

	if _, err := io.WriteString(conn, addr.String()+"\r\n"); err != nil {
		return nil, netx.IOError(ctx, apperr.StageWrite, hostPort, err)
	}

	br := bufio.NewReaderSize(conn, headerBufferSize)
	line, err := readHeaderLine(br)
	if err != nil {
		return nil, withAddress(netx.IOError(ctx, apperr.StageRead, hostPort, err), hostPort)
	}
	if resp.Header, err = ParseHeader(line); err != nil {
		return nil, withAddress(asAppErr(err, apperr.CodeMalformedStatus, apperr.StageRead), hostPort)
	}

	if resp.Header.Class() == 2 {
		resp.Body, err = netx.ReadAtMost(eofReader{br}, c.MaxResponse)
		logger.Info(
			"readDone",
			slog.Int("ioBytesCount", len(resp.Body)),
			slog.Any("err", err),
			slog.String("errClass", netx.Classify(err)),
			slog.String("remoteAddr", hostPort),
		)
		if err != nil {
			return nil, withAddress(netx.IOError(ctx, apperr.StageRead, hostPort, err), hostPort)
		}
	}
	return resp, nil
}

func (c *Client) handshake(ctx context.Context, raw net.Conn, addr address.Gemini, logger *slog.Logger) (*tls.Conn, *x509.Certificate, error) {
	cfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Peer identity is established by TOFU pinning, not CA chains.
		InsecureSkipVerify: true, //nolint:gosec
		GetClientCertificate: func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
			if cert, ok := c.Certs.Lookup(addr.Host); ok {
				return cert, nil
			}
			return &tls.Certificate{}, nil
		},
	}
	if net.ParseIP(addr.Host) == nil {
		cfg.ServerName = addr.Host
	}

	t0 := time.Now()
	logger.Info(
		"tlsHandshakeStart",
		slog.String("localAddr", safeconn.LocalAddr(raw)),
		slog.String("remoteAddr", safeconn.RemoteAddr(raw)),
		slog.String("tlsServerName", cfg.ServerName),
		slog.Time("t", t0),
	)

	conn := tls.Client(raw, cfg)
	err := conn.HandshakeContext(ctx)
	state := conn.ConnectionState()

	logger.Info(
		"tlsHandshakeDone",
		slog.Any("err", err),
		slog.String("errClass", netx.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(raw)),
		slog.String("remoteAddr", safeconn.RemoteAddr(raw)),
		slog.String("tlsCipherSuite", tls.CipherSuiteName(state.CipherSuite)),
		slog.String("tlsVersion", tls.VersionName(state.Version)),
		slog.Time("t0", t0),
		slog.Time("t", time.Now()),
	)

	if err != nil {
		conn.Close()
		return nil, nil, netx.HandshakeError(ctx, addr.HostPort(), err)
	}
	if len(state.PeerCertificates) == 0 {
		conn.Close()
		return nil, nil, &apperr.Error{
			Code:    apperr.CodeTLSHandshake,
			Stage:   apperr.StageHandshake,
			Address: addr.HostPort(),
			Err:     errors.New("server presented no certificate"),
		}
	}
	return conn, state.PeerCertificates[0], nil
}

func (c *Client) trust(ctx context.Context, addr address.Gemini, leaf *x509.Certificate, logger *slog.Logger) (tofu.Outcome, error) {
	hostPort := addr.HostPort()
	if c.VerifyHostname {
		if err := leaf.VerifyHostname(addr.Host); err != nil {
			return "", &apperr.Error{Code: apperr.CodeHostnameMismatch, Stage: apperr.StageTrust, Address: hostPort, Err: err}
		}
	}

	obs := tofu.Observe(leaf)
	outcome, err := c.Verifier.Verify(ctx, hostPort, obs)
	if err != nil {
		return "", withAddress(asAppErr(err, apperr.CodeTrustStore, apperr.StageTrust), hostPort)
	}

	logger.Info("trustDone", slog.String("hostPort", hostPort), slog.String("outcome", string(outcome)),
		slog.String("fingerprint", obs.Fingerprint))
	c.Notifier.NotifyTrust(models.TrustEvent{HostPort: hostPort, Outcome: string(outcome), Fingerprint: obs.Fingerprint})

	if !outcome.OK() {
		return outcome, &apperr.Error{
			Code:    apperr.CodeFingerprintMismatch,
			Stage:   apperr.StageTrust,
			Address: hostPort,
			Err:     fmt.Errorf("certificate fingerprint %s does not match the pinned certificate", checksum.Colons(obs.Fingerprint)),
		}
	}
	return outcome, nil
}

// readHeaderLine returns the first line, without requiring a terminator when
// the server closes right after it.
func readHeaderLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadSlice('\n')
	switch {
	case err == nil:
		return string(line), nil
	case errors.Is(err, bufio.ErrBufferFull):
		return "", malformed("header line exceeds %d bytes", headerBufferSize)
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		if len(line) == 0 {
			return "", malformed("connection closed before a header line")
		}
		return string(line), nil
	default:
		return "", err
	}
}

// eofReader treats a TCP close without TLS close_notify as end of body.
type eofReader struct{ r io.Reader }

func (e eofReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}

func asAppErr(err error, code apperr.Code, stage apperr.Stage) *apperr.Error {
	if e, ok := apperr.As(err); ok {
		return e
	}
	return apperr.Wrap(code, stage, err)
}

func withAddress(e *apperr.Error, hostPort string) *apperr.Error {
	if e.Address == "" {
		e.Address = hostPort
	}
	return e
}
