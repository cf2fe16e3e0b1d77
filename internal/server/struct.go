package server

import (
	"net/http"
	"time"

	"github.com/woozymasta/bedrock-status/internal/game"
	"github.com/woozymasta/bedrock-status/internal/models"
)

// StatusSource provides the outcome of the most recent poll.
type StatusSource interface {
	Snapshot() models.Snapshot
}

// Options configures the HTTP server.
type Options struct {
	// Address to listen on, e.g. ":8080".
	Address string

	// AuthToken protects /api/status and enables /api/query when set.
	AuthToken string

	// RateCount requests are allowed per IP within RateWindow.
	RateCount  int
	RateWindow time.Duration

	// QueryTimeout bounds live queries made by /api/query.
	QueryTimeout time.Duration

	// QueryBufferSize is the reply buffer size for live queries.
	QueryBufferSize uint16

	// QueryStrict discards live query replies that do not echo the ping.
	QueryStrict bool

	// TrustProxy makes GetRealIP honour CF-Connecting-IP and X-Forwarded-For.
	TrustProxy bool
}

// Server holds the dependencies and configuration required to handle HTTP requests.
type Server struct {
	// source provides the latest poll snapshot served by /api/status and /healthz.
	source StatusSource

	// handler is the routed and wrapped request handler, built once by New.
	handler http.Handler

	// authToken is the secret token required for /api/status and /api/query.
	// An empty token leaves /api/status open and disables /api/query.
	authToken string

	// address is the listen address used by Serve.
	address string

	// queryTimeout bounds a single live query made on behalf of a client.
	queryTimeout time.Duration

	// hardLimitWin is the time window duration for the per-IP rate limiter.
	hardLimitWin time.Duration

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// query holds the client options for live queries, strict mode included.
	query game.Options

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}
