// Package config handles the parsing and validation of application configuration
// from command-line arguments, environment variables and the TOML settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/bedrock-status/assets"
	"github.com/woozymasta/bedrock-status/internal/discord"
	"github.com/woozymasta/bedrock-status/internal/game"
	"github.com/woozymasta/bedrock-status/internal/logger"
	"github.com/woozymasta/bedrock-status/internal/vars"
)

// Built-in defaults for values that the settings file may also provide.
const (
	DefaultPort           = game.DefaultPort
	DefaultOnlineMessage  = "$ServerName$ - $PlayerCount$/$MaxPlayerCount$"
	DefaultOfflineMessage = "Server Offline"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server  Server        `group:"Server Options" env-namespace:"BEDROCK_STATUS"`
	Query   Query         `group:"Query Options" namespace:"query" env-namespace:"BEDROCK_STATUS_QUERY"`
	Discord Discord       `group:"Discord Options" namespace:"discord" env-namespace:"BEDROCK_STATUS_DISCORD"`
	HTTP    HTTP          `group:"HTTP Options" namespace:"http" env-namespace:"BEDROCK_STATUS_HTTP"`
	GeoIP   GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"BEDROCK_STATUS_GEOIP"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"BEDROCK_STATUS_LOG"`

	ConfigFile string   `short:"c" long:"config" env:"BEDROCK_STATUS_CONFIG" description:"Path to TOML settings file"`
	InitConfig string   `long:"init-config" description:"Write an example settings file to the path and exit"`
	Probe      []string `long:"probe" description:"Query host[:port] once, print the result and exit (repeatable)"`
	FakeListen string   `long:"fake-listen" hidden:"true"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds the polled server and the presence texts.
// Fields without a default tag may come from the settings file.
type Server struct {
	// betteralign:ignore

	Host     string        `short:"a" long:"host" env:"HOST" description:"Bedrock server host name or IP"`
	Port     int           `short:"p" long:"port" env:"PORT" description:"Bedrock server UDP port (default: 19132)"`
	Online   string        `long:"online-message" env:"ONLINE_MESSAGE" description:"Activity template while online, supports $ServerName$, $Version$, $PlayerCount$, $MaxPlayerCount$, $GameMode$, $WorldName$, $Edition$, $Country$"`
	Offline  string        `long:"offline-message" env:"OFFLINE_MESSAGE" description:"Activity text while offline (default: Server Offline)"`
	Interval time.Duration `short:"i" long:"interval" env:"INTERVAL" description:"Poll interval" default:"10s"`
}

// Query holds status query options.
type Query struct {
	// betteralign:ignore

	Timeout    time.Duration `long:"timeout" env:"TIMEOUT" description:"Time to wait for a reply" default:"10s"`
	BufferSize uint16        `long:"buffer-size" env:"BUFFER_SIZE" description:"Reply buffer size" default:"1492"`
	Strict     bool          `long:"strict" env:"STRICT" description:"Discard replies that do not echo the last ping"`
	Workers    int           `long:"workers" env:"WORKERS" description:"Concurrent queries in probe mode" default:"4"`
}

// Discord holds presence session options.
type Discord struct {
	// betteralign:ignore

	Token      string `short:"t" long:"token" env:"TOKEN" description:"Bot token"`
	GatewayURL string `long:"gateway-url" env:"GATEWAY_URL" description:"Gateway websocket URL (default: wss://gateway.discord.gg/?v=10&encoding=json)"`
	DryRun     bool   `long:"dry-run" env:"DRY_RUN" description:"Log activity changes instead of publishing them"`
}

// HTTP holds the status API server configuration.
type HTTP struct {
	// betteralign:ignore

	Address    string        `long:"address" env:"ADDRESS" description:"Listen address for /api/status, /healthz and /metrics, empty to disable"`
	AuthToken  string        `long:"auth-token" env:"AUTH_TOKEN" description:"Bearer token required for /api/status"`
	TrustProxy bool          `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	RateCount  int           `long:"rate-count" env:"RATE_COUNT" description:"Requests allowed per IP within the window" default:"30"`
	RateWindow time.Duration `long:"rate-window" env:"RATE_WINDOW" description:"Rate limit window duration" default:"1m"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty to disable $Country$"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Database refresh age" default:"24h"`
}

// Parse reads the configuration from flags, environment variables and the settings file.
// It terminates the application if the configuration is invalid or if the help,
// version or init-config flags are invoked.
func Parse() *Config {
	cfg, err := load(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			// already printed by go-flags
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if cfg.InitConfig != "" {
		if err := WriteExample(cfg.InitConfig); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("Example settings written to %s\n", cfg.InitConfig)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return cfg
}

// load parses args and merges the settings file without validating the result.
func load(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.ConfigFile != "" {
		file, err := LoadFile(cfg.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg.merge(file)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// merge fills values not given by flag or environment from the settings file.
func (c *Config) merge(f *File) {
	if c.Discord.Token == "" {
		c.Discord.Token = f.Token
	}
	if c.Server.Host == "" {
		c.Server.Host = f.ServerAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = f.ServerPort
	}
	if c.Server.Online == "" {
		c.Server.Online = f.OnlineMessage
	}
	if c.Server.Offline == "" {
		c.Server.Offline = f.OfflineMessage
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Online == "" {
		c.Server.Online = DefaultOnlineMessage
	}
	if c.Server.Offline == "" {
		c.Server.Offline = DefaultOfflineMessage
	}
	if c.Discord.GatewayURL == "" {
		c.Discord.GatewayURL = discord.DefaultGatewayURL
	}
}

// Validate reports the first missing or out of range value.
// Probe and fake server modes only need the query options.
func (c *Config) Validate() error {
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.Query.Timeout)
	}
	if c.Query.BufferSize == 0 {
		return errors.New("query buffer size must be positive")
	}

	if len(c.Probe) > 0 {
		if c.Query.Workers < 1 {
			return fmt.Errorf("probe workers must be positive, got %d", c.Query.Workers)
		}
		return nil
	}
	if c.FakeListen != "" {
		return nil
	}

	if c.Server.Host == "" {
		return errors.New("required flag `-a, --host', environment variable `BEDROCK_STATUS_HOST' or settings `server_address' was not specified")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if c.Server.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Server.Interval)
	}
	if c.Discord.Token == "" && !c.Discord.DryRun {
		return errors.New("required flag `-t, --discord-token', environment variable `BEDROCK_STATUS_DISCORD_TOKEN' or settings `token' was not specified")
	}
	if c.HTTP.Address != "" && (c.HTTP.RateCount < 1 || c.HTTP.RateWindow <= 0) {
		return errors.New("http rate limit count and window must be positive")
	}

	return nil
}

// WriteExample writes the embedded example settings file to path.
// An existing file is never overwritten.
func WriteExample(path string) error {
	data, err := assets.ReadFile(assets.ExampleSettings)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create settings file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}

	return f.Close()
}
