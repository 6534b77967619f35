// Package testutil provides shared test helpers: temporary trust stores,
// self-signed certificates and loopback servers.
package testutil

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"log/slog"
	"math/big"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/gopher-mcp/internal/tofu"
)

// TrustStore creates a temporary SQLite trust store that is automatically cleaned up.
func TrustStore(t *testing.T) *tofu.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "gopher-mcp-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	s, err := tofu.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Logger returns a JSON logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ServerCert returns a self-signed certificate valid for localhost and 127.0.0.1.
func ServerCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
}

// Server is a loopback TCP server that hands each connection to a handler.
type Server struct {
	Addr string

	ln       net.Listener
	wg       sync.WaitGroup
	mu       sync.Mutex
	requests []string
}

// Requests returns the request lines received so far, without CRLF.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

// Handler serves one connection after its request line has been read.
type Handler func(conn net.Conn, request string)

// Listen starts a plain TCP server on 127.0.0.1.
func Listen(t *testing.T, h Handler) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return serve(t, ln, h)
}

// ListenTLS starts a TLS server on 127.0.0.1 presenting cert. Client
// certificates are requested but not verified.
func ListenTLS(t *testing.T, cert tls.Certificate, h Handler) *Server {
	t.Helper()
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequestClientCert,
		MinVersion:   tls.VersionTLS12,
	})
	if err != nil {
		t.Fatal(err)
	}
	return serve(t, ln, h)
}

func serve(t *testing.T, ln net.Listener, h Handler) *Server {
	s := &Server{Addr: ln.Addr().String(), ln: ln}
	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer conn.Close()
				_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
				line, err := bufio.NewReader(conn).ReadString('\n')
				if err != nil && line == "" {
					return
				}
				req := strings.TrimRight(line, "\r\n")
				s.mu.Lock()
				s.requests = append(s.requests, req)
				s.mu.Unlock()
				h(conn, req)
			}()
		}
	}()
	return s
}

// Respond returns a Handler that writes body and closes.
func Respond(body string) Handler {
	return func(conn net.Conn, _ string) {
		_, _ = conn.Write([]byte(body))
	}
}

// Routes returns a Handler that writes routes[request], or notFound.
func Routes(routes map[string]string, notFound string) Handler {
	return func(conn net.Conn, req string) {
		body, ok := routes[req]
		if !ok {
			body = notFound
		}
		_, _ = conn.Write([]byte(body))
	}
}

// Hang returns a Handler that blocks until done is closed or the connection drops.
func Hang(done <-chan struct{}) Handler {
	return func(conn net.Conn, _ string) {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}
}
