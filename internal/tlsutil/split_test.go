package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsePEM(data []byte) (*x509.Certificate, []byte, error) {
	block, rest := pem.Decode(data)
	if block == nil {
		return nil, rest, errors.New("no PEM block")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	return cert, rest, err
}

func newSplit(t *testing.T) (*Split, []byte) {
	t.Helper()
	certPEM, keyPEM, err := selfSigned(nil, time.Now())
	require.NoError(t, err)
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewSplit(l, ServerConfig(&cert))
	t.Cleanup(func() { s.Close() })
	return s, certPEM
}

func acceptOne(t *testing.T, l net.Listener) net.Conn {
	t.Helper()
	ch := make(chan net.Conn, 1)
	go func() {
		c, err := l.Accept()
		if err == nil {
			ch <- c
		}
	}()
	select {
	case c := <-ch:
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func TestSplitRoutesPlainText(t *testing.T) {
	s, _ := newSplit(t)
	assert.Equal(t, s.Addr(), s.Plain().Addr())

	client, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	_, err = client.Write([]byte("GET / HTTP/1.1\r\n"))
	require.NoError(t, err)

	conn := acceptOne(t, s.Plain())
	defer conn.Close()
	buf := make([]byte, 16)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "GET / HTTP/1.1\r\n", string(buf))
}

func TestSplitRoutesTLS(t *testing.T) {
	s, certPEM := newSplit(t)
	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(certPEM))

	done := make(chan error, 1)
	go func() {
		c, err := tls.Dial("tcp", s.Addr().String(), &tls.Config{RootCAs: pool, ServerName: "localhost"})
		if err != nil {
			done <- err
			return
		}
		defer c.Close()
		_, err = c.Write([]byte("ping"))
		done <- err
	}()

	conn := acceptOne(t, s.Secure())
	defer conn.Close()
	buf := make([]byte, 4)
	_, err := io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
	require.NoError(t, <-done)
}

func TestSplitClose(t *testing.T) {
	s, _ := newSplit(t)
	require.NoError(t, s.Plain().Close())
	require.NoError(t, s.Close())

	_, err := s.Secure().Accept()
	assert.ErrorIs(t, err, net.ErrClosed)
}
