package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thejerf/suture/v4"
)

// gateway is a minimal Discord gateway. script runs after hello and identify.
type gateway struct {
	t        *testing.T
	identify chan identify
	frames   chan event
	script   func(conn *websocket.Conn)
}

func newGateway(t *testing.T, script func(conn *websocket.Conn)) (*gateway, string) {
	t.Helper()

	g := &gateway{
		t:        t,
		identify: make(chan identify, 1),
		frames:   make(chan event, 16),
		script:   script,
	}

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		g.serve(conn)
	}))
	t.Cleanup(srv.Close)

	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (g *gateway) serve(conn *websocket.Conn) {
	if err := conn.WriteJSON(map[string]any{"op": opHello, "d": map[string]any{"heartbeat_interval": 60000}}); err != nil {
		return
	}

	var evt event
	if err := conn.ReadJSON(&evt); err != nil || evt.Op != opIdentify {
		return
	}
	var id identify
	if err := json.Unmarshal(evt.D, &id); err == nil {
		g.identify <- id
	}

	if g.script != nil {
		g.script(conn)
	}

	for {
		var evt event
		if err := conn.ReadJSON(&evt); err != nil {
			return
		}
		g.frames <- evt
	}
}

func sendReady(conn *websocket.Conn) {
	_ = conn.WriteJSON(map[string]any{
		"op": opDispatch,
		"s":  1,
		"t":  "READY",
		"d":  map[string]any{"session_id": "abc", "user": map[string]any{"id": "1", "username": "bot"}},
	})
}

func serveSession(t *testing.T, s *Session) (context.CancelFunc, chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	t.Cleanup(cancel)

	return cancel, done
}

func waitErr(t *testing.T, done chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

func TestSessionPublishesPresence(t *testing.T) {
	g, url := newGateway(t, sendReady)
	s := New("secret", Options{GatewayURL: url})

	cancel, done := serveSession(t, s)

	select {
	case id := <-g.identify:
		assert.Equal(t, "secret", id.Token)
		assert.Equal(t, 0, id.Intents)
		assert.Nil(t, id.Presence)
	case <-time.After(5 * time.Second):
		t.Fatal("no identify received")
	}

	require.Eventually(t, func() bool { return s.State() == StateReady }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Publish(context.Background(), "My Server - 3/10"))

	select {
	case evt := <-g.frames:
		require.Equal(t, opPresenceUpdate, evt.Op)
		var p presence
		require.NoError(t, json.Unmarshal(evt.D, &p))
		assert.Equal(t, "online", p.Status)
		require.Len(t, p.Activities, 1)
		assert.Equal(t, "My Server - 3/10", p.Activities[0].Name)
		assert.Equal(t, activityPlaying, p.Activities[0].Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no presence update received")
	}

	cancel()
	assert.NoError(t, waitErr(t, done))
	assert.Equal(t, StateDisconnected, s.State())
}

func TestSessionPublishBeforeReady(t *testing.T) {
	s := New("secret", Options{GatewayURL: "ws://127.0.0.1:1"})

	err := s.Publish(context.Background(), "Server Offline")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSessionIdentifyCarriesPendingActivity(t *testing.T) {
	g, url := newGateway(t, sendReady)
	s := New("secret", Options{GatewayURL: url})

	assert.ErrorIs(t, s.Publish(context.Background(), "Server Offline"), ErrNotReady)

	serveSession(t, s)

	select {
	case id := <-g.identify:
		require.NotNil(t, id.Presence)
		require.Len(t, id.Presence.Activities, 1)
		assert.Equal(t, "Server Offline", id.Presence.Activities[0].Name)
	case <-time.After(5 * time.Second):
		t.Fatal("no identify received")
	}
}

func TestSessionAuthenticationFailedTerminatesTree(t *testing.T) {
	_, url := newGateway(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(closeAuthenticationFailed, "Authentication failed.")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	})
	s := New("bad", Options{GatewayURL: url})

	_, done := serveSession(t, s)

	err := waitErr(t, done)
	require.Error(t, err)
	assert.True(t, errors.Is(err, suture.ErrTerminateSupervisorTree))
}

func TestSessionReconnectIsRestartable(t *testing.T) {
	_, url := newGateway(t, func(conn *websocket.Conn) {
		sendReady(conn)
		_ = conn.WriteJSON(map[string]any{"op": opReconnect, "d": nil})
	})
	s := New("secret", Options{GatewayURL: url})

	_, done := serveSession(t, s)

	err := waitErr(t, done)
	assert.ErrorIs(t, err, errReconnect)
	assert.False(t, errors.Is(err, suture.ErrTerminateSupervisorTree))
}

func TestSessionAnswersHeartbeatRequest(t *testing.T) {
	g, url := newGateway(t, func(conn *websocket.Conn) {
		sendReady(conn)
		_ = conn.WriteJSON(map[string]any{"op": opHeartbeat, "d": nil})
	})
	s := New("secret", Options{GatewayURL: url})

	serveSession(t, s)

	select {
	case evt := <-g.frames:
		require.Equal(t, opHeartbeat, evt.Op)
		var seq int64
		require.NoError(t, json.Unmarshal(evt.D, &seq))
		assert.Equal(t, int64(1), seq)
	case <-time.After(5 * time.Second):
		t.Fatal("no heartbeat received")
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "state(7)", State(7).String())
}
