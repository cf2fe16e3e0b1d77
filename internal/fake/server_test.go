package fake

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/bedrock-status/internal/game"
)

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()

	srv, err := Listen("127.0.0.1:0", opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("Serve did not return after cancel")
		}
	})

	return srv
}

func dial(t *testing.T, srv *Server) *game.Client {
	t.Helper()

	c, err := game.Dial(srv.Addr(), game.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestServerAnswersPing(t *testing.T) {
	srv := startServer(t, Options{Status: DefaultStatus(), GUID: 42})
	c := dial(t, srv)

	status, err := c.Query(context.Background(), time.Second)
	require.NoError(t, err)

	want := DefaultStatus()
	assert.Equal(t, &want, status)
	assert.Equal(t, int64(1), srv.Pings())
}

func TestServerSetStatus(t *testing.T) {
	srv := startServer(t, Options{Status: DefaultStatus()})
	c := dial(t, srv)

	next := DefaultStatus()
	next.Players = 7
	next.Name = "Renamed"
	srv.SetStatus(next)

	status, err := c.Query(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, status.Players)
	assert.Equal(t, "Renamed", status.Name)
}

func TestServerDropEvery(t *testing.T) {
	srv := startServer(t, Options{Status: DefaultStatus(), DropEvery: 2})
	c := dial(t, srv)

	_, err := c.Query(context.Background(), time.Second)
	require.NoError(t, err)

	_, err = c.Query(context.Background(), 100*time.Millisecond)
	require.ErrorIs(t, err, game.ErrTimeout)

	_, err = c.Query(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(3), srv.Pings())
}

func TestServerDelayedReplyHarvestedLater(t *testing.T) {
	srv := startServer(t, Options{Status: DefaultStatus(), Delay: 200 * time.Millisecond})
	c := dial(t, srv)

	_, err := c.Query(context.Background(), 50*time.Millisecond)
	require.ErrorIs(t, err, game.ErrTimeout)

	status, err := c.Query(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "Fake Server", status.Name)
}

func TestServerWanderStaysInBounds(t *testing.T) {
	srv := startServer(t, Options{Status: DefaultStatus(), Wander: true})
	c := dial(t, srv)

	for i := 0; i < 10; i++ {
		status, err := c.Query(context.Background(), time.Second)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, status.Players, 0)
		assert.LessOrEqual(t, status.Players, status.MaxPlayers)
	}
}

func TestServerIgnoresGarbage(t *testing.T) {
	srv := startServer(t, Options{Status: DefaultStatus()})

	c := dial(t, srv)
	_, err := c.Query(context.Background(), time.Second)
	require.NoError(t, err)

	conn, err := net.DialUDP("udp", nil, srv.Addr())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	_, err = conn.Write([]byte{0x05, 0x00})
	require.NoError(t, err)

	_, err = c.Query(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(2), srv.Pings())
}
