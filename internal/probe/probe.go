// Package probe queries a list of Bedrock servers once and reports the results.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/bedrock-status/internal/game"
)

// Target is a server endpoint.
type Target struct {
	Host string
	Port int
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ParseTarget parses "host", "host:port", "v6", "[v6]" or "[v6]:port". The port defaults to game.DefaultPort.
func ParseTarget(s string) (Target, error) {
	if s == "" {
		return Target{}, errors.New("empty target")
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// no port given, or a bare IPv6 address with or without brackets
		host = s
		if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
			if net.ParseIP(host) == nil {
				return Target{}, fmt.Errorf("invalid target %q: %w", s, err)
			}
		}
		if ip := net.ParseIP(host); ip != nil || !strings.Contains(host, ":") {
			return Target{Host: host, Port: game.DefaultPort}, nil
		}
		return Target{}, fmt.Errorf("invalid target %q: %w", s, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Target{}, fmt.Errorf("invalid port in target %q", s)
	}
	if host == "" {
		return Target{}, fmt.Errorf("missing host in target %q", s)
	}

	return Target{Host: host, Port: port}, nil
}

// Result is the outcome of one target query.
type Result struct {
	Err     error
	Status  *game.Status
	Target  Target
	Latency time.Duration
}

// Options configures Run.
type Options struct {
	// Client is passed to game.New for every target.
	Client game.Options

	// Timeout bounds each query.
	Timeout time.Duration

	// Workers is the number of concurrent queries.
	Workers int
}

// Run queries every target once using a pool of workers.
// Results are returned in the order of targets.
func Run(ctx context.Context, targets []Target, opts Options) []Result {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(targets) {
		workers = len(targets)
	}

	results := make([]Result, len(targets))
	jobs := make(chan int, len(targets))
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = query(ctx, targets[idx], opts)
			}
		}()
	}

	// Send jobs
	for i := range targets {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	return results
}

func query(ctx context.Context, target Target, opts Options) Result {
	logCtx := log.With().
		Str("host", target.Host).
		Int("port", target.Port).
		Logger()

	res := Result{Target: target}

	client, err := game.New(target.Host, target.Port, opts.Client)
	if err != nil {
		logCtx.Debug().Err(err).Msg("Failed to open client")
		res.Err = err
		return res
	}
	defer func() { _ = client.Close() }()

	start := time.Now()
	res.Status, res.Err = client.Query(ctx, opts.Timeout)
	res.Latency = time.Since(start)

	if res.Err != nil {
		logCtx.Debug().Err(res.Err).Str("kind", game.Kind(res.Err)).Msg("Probe failed")
	} else {
		logCtx.Trace().Dur("latency", res.Latency).Msg("Probe succeeded")
	}

	return res
}

// Print writes one line per result and reports whether any query failed.
func Print(w io.Writer, results []Result) (failed bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TARGET\tRESULT\tNAME\tPLAYERS\tVERSION\tLATENCY")

	for _, r := range results {
		if r.Err != nil {
			failed = true
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t-\t-\t-\n", r.Target, game.Kind(r.Err), r.Err)
			continue
		}

		_, _ = fmt.Fprintf(tw, "%s\tok\t%s\t%d/%d\t%s\t%s\n",
			r.Target, r.Status.Name, r.Status.Players, r.Status.MaxPlayers, r.Status.Version,
			r.Latency.Round(time.Millisecond))
	}

	_ = tw.Flush()

	return failed
}
