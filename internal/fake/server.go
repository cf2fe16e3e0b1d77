// Package fake provides a simulated Bedrock server answering unconnected pings,
// used for testing and local development.
package fake

import (
	"context"
	"encoding/binary"
	"errors"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/bedrock-status/internal/game"
)

// Options tunes the replies of a Server.
type Options struct {
	// Status is advertised in every pong.
	Status game.Status

	// GUID is the server id sent in pongs.
	GUID int64

	// Delay postpones every pong.
	Delay time.Duration

	// DropEvery drops every n-th ping when positive.
	DropEvery int

	// Wander randomizes the player count between 0 and MaxPlayers on each reply.
	Wander bool
}

// DefaultStatus is advertised by --fake-listen.
func DefaultStatus() game.Status {
	return game.Status{
		Edition:    "MCPE",
		Name:       "Fake Server",
		Protocol:   766,
		Version:    "1.21.50",
		Players:    0,
		MaxPlayers: 20,
		WorldName:  "Bedrock level",
		GameMode:   "Survival",
	}
}

// Server is a UDP responder speaking the unconnected ping/pong exchange.
type Server struct {
	conn *net.UDPConn
	opts Options

	mu     sync.RWMutex
	status game.Status

	wg    sync.WaitGroup
	pings atomic.Int64
}

// Listen binds a UDP socket on addr, e.g. "127.0.0.1:0".
func Listen(addr string, opts Options) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}

	return &Server{
		conn:   conn,
		opts:   opts,
		status: opts.Status,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// SetStatus replaces the advertised status.
func (s *Server) SetStatus(status game.Status) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Pings returns the number of valid pings received.
func (s *Server) Pings() int64 {
	return s.pings.Load()
}

// Serve answers pings until ctx is done or the server is closed. It is a suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	log.Info().Str("address", s.Addr().String()).Msg("Fake Bedrock server listening")

	buf := make([]byte, 64)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}

		if n != game.PingSize || buf[0] != game.IDUnconnectedPing {
			log.Trace().Int("size", n).Str("from", from.String()).Msg("Ignoring datagram")
			continue
		}

		count := s.pings.Add(1)
		if s.opts.DropEvery > 0 && count%int64(s.opts.DropEvery) == 0 {
			log.Debug().Int64("ping", count).Msg("Dropping ping")
			continue
		}

		pingID := int64(binary.BigEndian.Uint64(buf[1:9]))
		s.reply(pingID, from)
	}
}

func (s *Server) reply(pingID int64, to *net.UDPAddr) {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	if s.opts.Wander && status.MaxPlayers > 0 {
		status.Players = rand.IntN(status.MaxPlayers + 1)
	}

	data := game.EncodePong(game.Pong{
		PingID:     pingID,
		ServerGUID: s.opts.GUID,
		Status:     &status,
	})

	if s.opts.Delay == 0 {
		_, _ = s.conn.WriteToUDP(data, to)
		return
	}

	s.wg.Add(1)
	time.AfterFunc(s.opts.Delay, func() {
		defer s.wg.Done()
		_, _ = s.conn.WriteToUDP(data, to)
	})
}

// Close releases the socket.
func (s *Server) Close() error {
	return s.conn.Close()
}

// String implements fmt.Stringer, used by suture in its log events.
func (s *Server) String() string {
	return "fake.Server(" + s.Addr().String() + ")"
}
