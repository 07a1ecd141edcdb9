package tlsutil

import (
	"bufio"
	"crypto/tls"
	"net"
	"sync"
	"time"
)

// handshakeRecord is the first byte of every TLS ClientHello.
const handshakeRecord = 0x16

const sniffTimeout = 5 * time.Second

// Split accepts connections from one listener and hands each to Plain or
// Secure depending on whether the client opens with a TLS handshake.
type Split struct {
	inner  net.Listener
	config *tls.Config
	plain  *queue
	secure *queue

	once   sync.Once
	closed chan struct{}
}

// NewSplit starts accepting from inner. Close stops it.
func NewSplit(inner net.Listener, config *tls.Config) *Split {
	s := &Split{
		inner:  inner,
		config: config,
		closed: make(chan struct{}),
	}
	s.plain = &queue{conns: make(chan net.Conn, 64), split: s}
	s.secure = &queue{conns: make(chan net.Conn, 64), split: s}
	go s.accept()
	return s
}

// Plain yields connections that did not start with a TLS handshake.
func (s *Split) Plain() net.Listener { return s.plain }

// Secure yields server-side TLS connections.
func (s *Split) Secure() net.Listener { return s.secure }

// Addr is the address of the underlying listener.
func (s *Split) Addr() net.Addr { return s.inner.Addr() }

// Close stops both listeners and the underlying one.
func (s *Split) Close() error {
	s.once.Do(func() { close(s.closed) })
	return s.inner.Close()
}

func (s *Split) accept() {
	for {
		conn, err := s.inner.Accept()
		if err != nil {
			select {
			case <-s.closed:
				return
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			// The inner listener is gone; release anyone blocked in Accept.
			s.Close()
			return
		}
		go s.route(conn)
	}
}

func (s *Split) route(conn net.Conn) {
	br := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(sniffTimeout))
	first, err := br.Peek(1)
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		conn.Close()
		return
	}

	var c net.Conn = &bufferedConn{Conn: conn, r: br}
	target := s.plain
	if first[0] == handshakeRecord {
		c = tls.Server(c, s.config)
		target = s.secure
	}
	select {
	case target.conns <- c:
	case <-s.closed:
		c.Close()
	}
}

// bufferedConn replays bytes already read while sniffing.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) { return c.r.Read(p) }

type queue struct {
	conns chan net.Conn
	split *Split
}

func (q *queue) Accept() (net.Conn, error) {
	select {
	case c := <-q.conns:
		return c, nil
	case <-q.split.closed:
		return nil, net.ErrClosed
	}
}

// Close is a no-op; the owning Split closes the socket.
func (q *queue) Close() error { return nil }

func (q *queue) Addr() net.Addr { return q.split.Addr() }
