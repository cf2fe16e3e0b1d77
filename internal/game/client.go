// Package game queries Minecraft Bedrock servers with the RakNet unconnected ping.
package game

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultPort is the standard Bedrock server UDP port.
	DefaultPort = 19132

	// DefaultBufferSize fits the largest datagram RakNet sends over a 1500 byte MTU link.
	DefaultBufferSize = 1492

	drainWait = time.Millisecond
	maxDrain  = 64
)

// Options tunes a Client.
type Options struct {
	// BufferSize is the receive buffer size, DefaultBufferSize when zero.
	BufferSize uint16

	// Strict discards replies that do not carry the pong id, the magic sequence
	// and the ping id of the request that is being waited for.
	Strict bool
}

// datagram is the outcome of one socket read.
type datagram struct {
	err  error
	data []byte
}

// Client sends unconnected pings to a single server.
//
// A read on the socket cannot be cancelled, so a read that outlives the timeout
// of one Query is kept as the pending receive and reused by the next Query while
// it is still blocked. At most one read is outstanding at any time. Query must
// not be called concurrently; calls are serialized.
type Client struct {
	conn *net.UDPConn
	addr *net.UDPAddr

	// pending is the receive left over from a Query that timed out, nil if none.
	pending chan datagram

	mu       sync.Mutex
	inflight atomic.Int32
	pingID   int64

	bufferSize int
	strict     bool
	closed     bool
}

// New resolves host and opens a UDP socket bound to the server endpoint.
func New(host string, port int, opts Options) (*Client, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, &TransportError{Op: "resolve", Err: err}
	}

	return Dial(addr, opts)
}

// Dial opens a UDP socket bound to addr.
func Dial(addr *net.UDPAddr, opts Options) (*Client, error) {
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	size := int(opts.BufferSize)
	if size == 0 {
		size = DefaultBufferSize
	}

	return &Client{
		conn:       conn,
		addr:       addr,
		bufferSize: size,
		strict:     opts.Strict,
	}, nil
}

// Addr returns the server address the client is bound to.
func (c *Client) Addr() *net.UDPAddr {
	return c.addr
}

// Query sends a ping and waits up to timeout for the pong.
//
// On timeout the receive keeps running and is handed to the next call. A pong
// that arrives while the next call waits answers that call. A pong that arrived
// while nobody waited is stale and dropped together with anything queued on the
// socket, so replies never lag behind the pings that asked for them.
// Cancelling ctx abandons the wait the same way as a timeout.
func (c *Client) Query(ctx context.Context, timeout time.Duration) (*Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	c.pingID++
	pingID := c.pingID

	c.dropCompleted()
	if c.pending == nil {
		c.drain()
	}

	if _, err := c.conn.Write(EncodePing(pingID)); err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		recv := c.pending
		if recv == nil {
			recv = c.receive()
		}

		select {
		case <-timer.C:
			c.pending = recv
			return nil, ErrTimeout

		case <-ctx.Done():
			c.pending = recv
			return nil, ctx.Err()

		case dg := <-recv:
			c.pending = nil

			if dg.err != nil {
				return nil, &TransportError{Op: "receive", Err: dg.err}
			}

			if c.strict && !answers(dg.data, pingID) {
				log.Trace().
					Str("server", c.addr.String()).
					Int64("ping_id", pingID).
					Int("size", len(dg.data)).
					Msg("Discarded unrelated datagram")
				continue
			}

			pong, err := DecodePong(dg.data)
			if err != nil {
				return nil, err
			}

			return pong.Status, nil
		}
	}
}

// Close releases the socket. A pending receive is abandoned and never awaited again.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil

	return c.conn.Close()
}

// receive starts a socket read. The result is delivered on the returned channel,
// which is buffered so the reading goroutine never blocks on an abandoned receive.
func (c *Client) receive() chan datagram {
	ch := make(chan datagram, 1)
	c.inflight.Add(1)

	go func() {
		buf := make([]byte, c.bufferSize)
		n, err := c.conn.Read(buf)
		c.inflight.Add(-1)
		ch <- datagram{data: buf[:n], err: err}
	}()

	return ch
}

// dropCompleted forgets the pending receive if its read already finished.
func (c *Client) dropCompleted() {
	select {
	case dg := <-c.pending:
		log.Trace().
			Str("server", c.addr.String()).
			Int("size", len(dg.data)).
			AnErr("read_error", dg.err).
			Msg("Dropped stale reply")
		c.pending = nil
	default:
	}
}

// drain discards datagrams already queued on the socket.
// It must only run while no receive is in flight.
func (c *Client) drain() {
	if err := c.conn.SetReadDeadline(time.Now().Add(drainWait)); err != nil {
		return
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	buf := make([]byte, c.bufferSize)
	for range maxDrain {
		n, err := c.conn.Read(buf)
		if err != nil {
			// deadline, or a stale ICMP error from an earlier ping
			return
		}
		log.Trace().
			Str("server", c.addr.String()).
			Int("size", n).
			Msg("Dropped queued datagram")
	}
}

// answers reports whether data is a pong to the ping carrying pingID.
func answers(data []byte, pingID int64) bool {
	if len(data) < pongHeaderSize || data[0] != IDUnconnectedPong {
		return false
	}
	if int64(binary.BigEndian.Uint64(data[1:9])) != pingID {
		return false
	}

	return bytes.Equal(data[17:33], Magic[:])
}
