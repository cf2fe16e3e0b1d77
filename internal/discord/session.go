// Package discord publishes the server activity as a Discord bot presence over the gateway websocket.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"
	"github.com/woozymasta/bedrock-status/internal/vars"
	"golang.org/x/time/rate"
)

// DefaultGatewayURL is the Discord gateway endpoint (API v10, JSON encoding).
const DefaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"

var (
	// ErrNotReady is returned by Publish while the session is not identified.
	ErrNotReady = errors.New("presence session not ready")

	errReconnect      = errors.New("gateway requested reconnect")
	errInvalidSession = errors.New("gateway invalidated session")
)

// State is the lifecycle state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Session.
type Options struct {
	// GatewayURL overrides DefaultGatewayURL.
	GatewayURL string

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration
}

// Session is one bot login on the gateway. Serve connects, identifies and keeps
// the connection alive; it is a suture.Service and returns when the connection
// ends so the supervisor can reconnect.
type Session struct {
	dialer  *websocket.Dialer
	limiter *rate.Limiter
	conn    *websocket.Conn

	url   string
	token string

	// activity is the last text passed to Publish, sent again on identify.
	activity string

	mu      sync.Mutex
	writeMu sync.Mutex
	state   atomic.Int32
	seq     atomic.Int64
}

// New creates a disconnected Session for the bot token.
func New(token string, opts Options) *Session {
	url := opts.GatewayURL
	if url == "" {
		url = DefaultGatewayURL
	}
	timeout := opts.HandshakeTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	s := &Session{
		url:   url,
		token: token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: timeout,
		},
		// Gateway allows 5 presence updates per 20 seconds.
		limiter: rate.NewLimiter(rate.Every(4*time.Second), 5),
	}
	s.seq.Store(-1)

	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	if State(s.state.Swap(int32(st))) != st {
		log.Debug().Str("state", st.String()).Msg("Discord session state changed")
	}
}

// Publish sets the bot activity to text.
// It returns ErrNotReady while the session is not identified; the text is then
// applied on the next identify.
func (s *Session) Publish(ctx context.Context, text string) error {
	s.mu.Lock()
	s.activity = text
	conn := s.conn
	s.mu.Unlock()

	if conn == nil || s.State() != StateReady {
		return ErrNotReady
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	return s.send(conn, opPresenceUpdate, presenceFor(text))
}

// Serve runs one gateway connection until it fails or ctx is done.
func (s *Session) Serve(ctx context.Context) error {
	s.setState(StateConnecting)
	defer s.setState(StateDisconnected)

	conn, resp, err := s.dialer.DialContext(ctx, s.url, http.Header{"User-Agent": {vars.UserAgent()}})
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	interval, err := s.readHello(conn)
	if err != nil {
		return err
	}

	if err := s.identify(conn); err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.heartbeat(hbCtx, conn, interval)

	for {
		var evt event
		if err := conn.ReadJSON(&evt); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, closeAuthenticationFailed) {
				return fmt.Errorf("%w: %w", suture.ErrTerminateSupervisorTree, err)
			}
			return fmt.Errorf("read gateway: %w", err)
		}

		if evt.S != nil {
			s.seq.Store(*evt.S)
		}

		switch evt.Op {
		case opDispatch:
			if evt.T == "READY" {
				var r ready
				if err := json.Unmarshal(evt.D, &r); err != nil {
					return fmt.Errorf("decode ready: %w", err)
				}
				s.setState(StateReady)
				log.Info().
					Str("user", r.User.Username).
					Str("session", r.SessionID).
					Msg("Discord session ready")
			}

		case opHeartbeat:
			if err := s.send(conn, opHeartbeat, s.lastSeq()); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}

		case opHeartbeatAck:
			log.Trace().Msg("Heartbeat acknowledged")

		case opReconnect:
			return errReconnect

		case opInvalidSession:
			return errInvalidSession
		}
	}
}

func (s *Session) readHello(conn *websocket.Conn) (time.Duration, error) {
	var evt event
	if err := conn.ReadJSON(&evt); err != nil {
		return 0, fmt.Errorf("read hello: %w", err)
	}
	if evt.Op != opHello {
		return 0, fmt.Errorf("expected hello, got opcode %d", evt.Op)
	}

	var h hello
	if err := json.Unmarshal(evt.D, &h); err != nil {
		return 0, fmt.Errorf("decode hello: %w", err)
	}
	if h.HeartbeatInterval <= 0 {
		return 0, fmt.Errorf("invalid heartbeat interval %d", h.HeartbeatInterval)
	}

	return time.Duration(h.HeartbeatInterval) * time.Millisecond, nil
}

func (s *Session) identify(conn *websocket.Conn) error {
	s.mu.Lock()
	text := s.activity
	s.mu.Unlock()

	data := identify{
		Token: s.token,
		Properties: map[string]string{
			"os":      runtime.GOOS,
			"browser": vars.Name,
			"device":  vars.Name,
		},
	}
	if text != "" {
		data.Presence = presenceFor(text)
	}

	return s.send(conn, opIdentify, data)
}

func (s *Session) heartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.send(conn, opHeartbeat, s.lastSeq()); err != nil {
				log.Debug().Err(err).Msg("Failed to send heartbeat")
				_ = conn.Close()
				return
			}
		}
	}
}

// lastSeq returns the last sequence number seen, nil before the first dispatch.
func (s *Session) lastSeq() *int64 {
	seq := s.seq.Load()
	if seq < 0 {
		return nil
	}
	return &seq
}

func (s *Session) send(conn *websocket.Conn, op int, data any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return conn.WriteJSON(command{Op: op, D: data})
}

// String implements fmt.Stringer, used by suture in its log events.
func (s *Session) String() string {
	return "discord.Session"
}
