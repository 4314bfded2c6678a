// Package transport owns the single TCP socket an HTSP session runs over:
// dialing (IPv4 or IPv6), length-prefixed full-duplex framing, and
// detection of a peer-initiated close. It knows nothing about HTSMSG field
// semantics beyond "a Map goes out, a Map comes back" — internal/htsmsg does
// the actual encoding.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/htspvr/htsp-pvr-sync/internal/htsmsg"
)

// Network selects the IP family used to dial.
type Network string

const (
	NetworkIPv4 Network = "tcp4"
	NetworkIPv6 Network = "tcp6"
)

// ErrPeerClosed indicates the remote end closed the connection (a zero-byte
// read). Callers translate this into session loss.
var ErrPeerClosed = errors.New("transport: peer closed connection")

// ErrConnClosed is returned by Send/Receive after Close has been called.
var ErrConnClosed = errors.New("transport: connection closed")

const lengthPrefixSize = 4

// Conn is a single TCP socket carrying length-prefixed HTSMSG frames.
// Reads are driven by exactly one caller at a time (the RPC client's reader
// goroutine); writes are serialized internally so callers never interleave
// partial frames.
type Conn struct {
	nc net.Conn

	writeMu sync.Mutex
	closed  bool
	mu      sync.Mutex
}

// Dial connects to addr (host:port) over the given network, bounded by
// timeout.
func Dial(ctx context.Context, network Network, addr string, timeout time.Duration) (*Conn, error) {
	d := net.Dialer{Timeout: timeout}
	nc, err := d.DialContext(ctx, string(network), addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Conn{nc: nc}, nil
}

// NewConn wraps an already-established net.Conn (e.g. one returned from
// net.Listener.Accept in a test double) in a Conn.
func NewConn(nc net.Conn) *Conn {
	return &Conn{nc: nc}
}

// Send serializes m and writes it as a single atomic frame. Concurrent
// calls to Send are serialized; no write buffering beyond the one frame.
func (c *Conn) Send(ctx context.Context, m *htsmsg.Map) error {
	wire, err := htsmsg.Marshal(m)
	if err != nil {
		return fmt.Errorf("transport: encode: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.isClosed() {
		return ErrConnClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.nc.SetWriteDeadline(deadline)
	} else {
		_ = c.nc.SetWriteDeadline(time.Time{})
	}
	if _, err := c.nc.Write(wire); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Receive blocks for exactly one frame, bounded by timeout or by ctx's
// deadline (if any), whichever comes first. A peer close, whether at a clean
// frame boundary or mid-frame, surfaces as ErrPeerClosed.
func (c *Conn) Receive(ctx context.Context, timeout time.Duration) (*htsmsg.Map, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.nc.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}

	var lenBuf [lengthPrefixSize]byte
	if _, err := io.ReadFull(c.nc, lenBuf[:]); err != nil {
		return nil, classifyReadErr(err)
	}
	size := binary.BigEndian.Uint32(lenBuf[:])

	body := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(c.nc, body); err != nil {
			return nil, classifyReadErr(err)
		}
	}

	framed := append(lenBuf[:], body...)
	m, err := htsmsg.Unmarshal(framed)
	if err != nil {
		return nil, fmt.Errorf("transport: decode: %w", err)
	}
	return m, nil
}

func classifyReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrPeerClosed
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return fmt.Errorf("transport: read timeout: %w", err)
	}
	return fmt.Errorf("transport: read: %w", err)
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close shuts down the socket. Safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.nc.Close()
}
