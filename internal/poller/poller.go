// Package poller periodically queries the server and keeps the presence activity in sync.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/bedrock-status/internal/activity"
	"github.com/woozymasta/bedrock-status/internal/game"
	"github.com/woozymasta/bedrock-status/internal/metrics"
	"github.com/woozymasta/bedrock-status/internal/models"
)

// Querier fetches the current server status.
type Querier interface {
	Query(ctx context.Context, timeout time.Duration) (*game.Status, error)
}

// Publisher shows a text on the presence channel.
type Publisher interface {
	Publish(ctx context.Context, text string) error
}

// Options configures the poll loop.
type Options struct {
	// OnlineTemplate is rendered with activity.Render when the server answered.
	OnlineTemplate string

	// OfflineMessage is published verbatim when the query failed.
	OfflineMessage string

	// Server labels the polled endpoint in logs and snapshots.
	Server string

	// Country fills the $Country$ placeholder.
	Country string

	Interval time.Duration
	Timeout  time.Duration
}

// Poller runs the poll loop. It is a suture.Service.
type Poller struct {
	client Querier
	pub    Publisher
	opts   Options

	// lastHash fingerprints the last successfully published text.
	lastHash  uint64
	published bool

	mu       sync.RWMutex
	snapshot models.Snapshot
}

// New creates a Poller.
func New(client Querier, pub Publisher, opts Options) *Poller {
	return &Poller{
		client: client,
		pub:    pub,
		opts:   opts,
		snapshot: models.Snapshot{
			Server:  opts.Server,
			Country: opts.Country,
			Result:  "pending",
		},
	}
}

// Serve polls once immediately and then on every interval until ctx is done.
func (p *Poller) Serve(ctx context.Context) error {
	log.Info().
		Str("server", p.opts.Server).
		Dur("interval", p.opts.Interval).
		Dur("timeout", p.opts.Timeout).
		Msg("Poller started")

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		p.Poll(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll performs one query and publishes the resulting activity if it changed.
func (p *Poller) Poll(ctx context.Context) {
	start := time.Now()
	status, err := p.client.Query(ctx, p.opts.Timeout)
	elapsed := time.Since(start)

	if err != nil && ctx.Err() != nil {
		// shutting down
		return
	}

	kind := game.Kind(err)
	metrics.QueryTotal.WithLabelValues(kind).Inc()

	var text string
	if err == nil {
		metrics.QueryDuration.Observe(elapsed.Seconds())
		metrics.Online.Set(1)
		metrics.Players.Set(float64(status.Players))
		metrics.MaxPlayers.Set(float64(status.MaxPlayers))

		vals := activity.ValuesFrom(status)
		vals.Country = p.opts.Country
		text = activity.Render(p.opts.OnlineTemplate, vals)

		log.Debug().
			Str("server", p.opts.Server).
			Str("name", status.Name).
			Int("players", status.Players).
			Int("max_players", status.MaxPlayers).
			Dur("latency", elapsed).
			Msg("Server online")
	} else {
		metrics.Online.Set(0)
		text = p.opts.OfflineMessage

		evt := log.Warn()
		if kind == "timeout" {
			evt = log.Debug()
		}
		evt.Err(err).
			Str("server", p.opts.Server).
			Str("kind", kind).
			Msg("Server considered offline")
	}

	p.publish(ctx, text)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.snapshot.Polls++
	p.snapshot.CheckedAt = start
	p.snapshot.Online = err == nil
	p.snapshot.Status = status
	p.snapshot.Activity = text
	p.snapshot.Result = kind
	p.snapshot.Latency = models.Duration(elapsed)
	p.snapshot.Error = ""
	if err != nil {
		p.snapshot.Error = err.Error()
	}
}

// publish sends text unless it equals the last published text.
// A failed publish is retried on the next poll.
func (p *Poller) publish(ctx context.Context, text string) {
	hash := xxhash.Sum64String(text)
	if p.published && hash == p.lastHash {
		metrics.PresenceUpdates.WithLabelValues("skipped").Inc()
		return
	}

	if err := p.pub.Publish(ctx, text); err != nil {
		metrics.PresenceUpdates.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("activity", text).Msg("Failed to publish activity")
		return
	}

	metrics.PresenceUpdates.WithLabelValues("ok").Inc()
	log.Info().Str("activity", text).Msg("Activity updated")

	p.lastHash = hash
	p.published = true

	p.mu.Lock()
	p.snapshot.Published = text
	p.snapshot.PublishedAt = time.Now()
	p.mu.Unlock()
}

// Snapshot returns the outcome of the most recent poll.
func (p *Poller) Snapshot() models.Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.snapshot
}

// String implements fmt.Stringer, used by suture in its log events.
func (p *Poller) String() string {
	return "poller(" + p.opts.Server + ")"
}
