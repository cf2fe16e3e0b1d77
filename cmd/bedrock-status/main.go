// main is the entry point of the bedrock-status application.
// It initializes the configuration and logger, then either probes servers once,
// runs the fake server, or polls one server and publishes its status as a Discord presence.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"
	"github.com/woozymasta/bedrock-status/internal/config"
	"github.com/woozymasta/bedrock-status/internal/discord"
	"github.com/woozymasta/bedrock-status/internal/fake"
	"github.com/woozymasta/bedrock-status/internal/game"
	"github.com/woozymasta/bedrock-status/internal/geoip"
	"github.com/woozymasta/bedrock-status/internal/logger"
	"github.com/woozymasta/bedrock-status/internal/poller"
	"github.com/woozymasta/bedrock-status/internal/probe"
	"github.com/woozymasta/bedrock-status/internal/server"
	"github.com/woozymasta/bedrock-status/internal/vars"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Parse()

	if closer := logger.Setup(cfg.Logger); closer != nil {
		defer func() { _ = closer.Close() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case len(cfg.Probe) > 0:
		return runProbe(ctx, cfg)
	case cfg.FakeListen != "":
		return runFake(ctx, cfg)
	default:
		return runBot(ctx, cfg)
	}
}

func runBot(ctx context.Context, cfg *config.Config) int {
	log.Info().
		Str("version", vars.Version).
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Msgf("Starting %s service...", vars.Name)

	client, err := game.New(cfg.Server.Host, cfg.Server.Port, game.Options{
		BufferSize: cfg.Query.BufferSize,
		Strict:     cfg.Query.Strict,
	})
	if err != nil {
		log.Error().Err(err).Str("host", cfg.Server.Host).Msg("Failed to create status client")
		return 1
	}
	defer func() { _ = client.Close() }()

	endpoint := client.Addr().String()
	country := lookupCountry(ctx, cfg, client)

	sup := suture.New(vars.Name, suture.Spec{EventHook: logger.SupervisorHook})

	var pub poller.Publisher
	if cfg.Discord.DryRun {
		log.Warn().Msg("Dry run enabled, activity is only logged")
		pub = discord.LogPublisher{}
	} else {
		session := discord.New(cfg.Discord.Token, discord.Options{GatewayURL: cfg.Discord.GatewayURL})
		sup.Add(session)
		pub = session
	}

	poll := poller.New(client, pub, poller.Options{
		OnlineTemplate: cfg.Server.Online,
		OfflineMessage: cfg.Server.Offline,
		Server:         endpoint,
		Country:        country,
		Interval:       cfg.Server.Interval,
		Timeout:        cfg.Query.Timeout,
	})
	sup.Add(poll)

	if cfg.HTTP.Address != "" {
		sup.Add(server.New(poll, server.Options{
			Address:         cfg.HTTP.Address,
			AuthToken:       cfg.HTTP.AuthToken,
			TrustProxy:      cfg.HTTP.TrustProxy,
			RateCount:       cfg.HTTP.RateCount,
			RateWindow:      cfg.HTTP.RateWindow,
			QueryTimeout:    cfg.Query.Timeout,
			QueryBufferSize: cfg.Query.BufferSize,
			QueryStrict:     cfg.Query.Strict,
		}))
	}

	err = sup.Serve(ctx)
	if errors.Is(err, suture.ErrTerminateSupervisorTree) {
		log.Error().Err(err).Msg("Service terminated")
		return 1
	}

	log.Info().Msg("Service exited")
	return 0
}

// lookupCountry resolves the country of the polled server for $Country$.
func lookupCountry(ctx context.Context, cfg *config.Config, client *game.Client) string {
	if cfg.GeoIP.Path == "" {
		return ""
	}

	log.Info().Msg("Checking GeoIP database...")
	dlCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := geoip.EnsureDB(dlCtx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	country, err := geoip.Country(cfg.GeoIP.Path, client.Addr().IP)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return ""
	}

	log.Info().Str("country", country).Str("ip", client.Addr().IP.String()).Msg("Server country resolved")
	return country
}

func runProbe(ctx context.Context, cfg *config.Config) int {
	targets := make([]probe.Target, 0, len(cfg.Probe))
	for _, s := range cfg.Probe {
		target, err := probe.ParseTarget(s)
		if err != nil {
			log.Error().Err(err).Msg("Invalid probe target")
			return 1
		}
		targets = append(targets, target)
	}

	results := probe.Run(ctx, targets, probe.Options{
		Client:  game.Options{BufferSize: cfg.Query.BufferSize, Strict: cfg.Query.Strict},
		Timeout: cfg.Query.Timeout,
		Workers: cfg.Query.Workers,
	})

	if probe.Print(os.Stdout, results) {
		return 1
	}
	return 0
}

func runFake(ctx context.Context, cfg *config.Config) int {
	srv, err := fake.Listen(cfg.FakeListen, fake.Options{
		Status: fake.DefaultStatus(),
		Wander: true,
	})
	if err != nil {
		log.Error().Err(err).Str("address", cfg.FakeListen).Msg("Failed to start fake server")
		return 1
	}
	defer func() { _ = srv.Close() }()

	if err := srv.Serve(ctx); err != nil {
		log.Error().Err(err).Msg("Fake server failed")
		return 1
	}

	return 0
}
