// Package config loads gateway configuration from an optional YAML file and the
// environment. Configuration is read once at startup and not mutated afterwards.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/mfea-gateway/internal/auth"
)

// EnvPrefix namespaces environment overrides; "__" separates levels,
// e.g. MFEA_DISCORD__PUBLIC_KEY.
const EnvPrefix = "MFEA_"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Discord   DiscordConfig   `koanf:"discord"`
	Worker    WorkerConfig    `koanf:"worker"`
	Market    MarketConfig    `koanf:"market"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
}

type DiscordConfig struct {
	PublicKey     string `koanf:"public_key"`
	ApplicationID string `koanf:"application_id"`
	BotToken      string `koanf:"bot_token"`
	APIBase       string `koanf:"api_base"`
	GuildID       string `koanf:"guild_id"`
}

type WorkerConfig struct {
	Workers     int           `koanf:"workers"`
	Queue       int           `koanf:"queue"`
	TaskTimeout time.Duration `koanf:"task_timeout"`
}

// MarketConfig selects and tunes the snapshot provider.
type MarketConfig struct {
	Source            string        `koanf:"source"` // yahoo, static
	Symbol            string        `koanf:"symbol"`
	ChartURL          string        `koanf:"chart_url"`
	RateURL           string        `koanf:"rate_url"` // empty: snapshots carry no rate
	HTTPTimeout       time.Duration `koanf:"http_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"` // shared by chart and rate requests
	UserAgent         string        `koanf:"user_agent"`          // empty: built-in agent
}

type LoggingConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	ServiceName  string `koanf:"service_name"`
	Tracing      bool   `koanf:"tracing"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

var defaults = map[string]any{
	"server.port":                8080,
	"server.request_timeout":     "10s",
	"server.shutdown_timeout":    "30s",
	"server.max_body_bytes":      1 << 20,
	"discord.api_base":           "https://discord.com/api/v10",
	"worker.workers":             4,
	"worker.queue":               64,
	"worker.task_timeout":        "10m",
	"market.source":              "yahoo",
	"market.symbol":              "^GSPC",
	"market.chart_url":           "https://query1.finance.yahoo.com/v8/finance/chart",
	"market.rate_url":            "https://www.cnbc.com/quotes/US3M",
	"market.http_timeout":        "15s",
	"market.requests_per_second": 2,
	"logging.level":              "info",
	"logging.format":             "json",
	"telemetry.service_name":     "mfea-gateway",
}

// legacyEnv maps the platform-conventional variable names onto config keys.
var legacyEnv = map[string]string{
	"DISCORD_PUBLIC_KEY":     "discord.public_key",
	"DISCORD_APPLICATION_ID": "discord.application_id",
	"DISCORD_BOT_TOKEN":      "discord.bot_token",
	"DISCORD_GUILD_ID":       "discord.guild_id",
	"PORT":                   "server.port",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads .env (if present), then path (if present), then the legacy
// variables, then MFEA_ overrides. Later sources win. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return legacyEnv[s]
	}), nil); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, v := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, v); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Discord.PublicKey = substituteEnvVars(cfg.Discord.PublicKey)
	cfg.Discord.BotToken = substituteEnvVars(cfg.Discord.BotToken)

	return &cfg, nil
}

// Validate reports every problem that would prevent the gateway from serving.
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.PublicKey == "" {
		errs = append(errs, errors.New("discord.public_key is required"))
	} else if _, err := auth.ParsePublicKey(c.Discord.PublicKey); err != nil {
		errs = append(errs, fmt.Errorf("discord.public_key: %w", err))
	}
	if c.Discord.ApplicationID == "" {
		errs = append(errs, errors.New("discord.application_id is required"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Worker.Workers <= 0 {
		errs = append(errs, errors.New("worker.workers must be > 0"))
	}
	if c.Worker.Queue < 0 {
		errs = append(errs, errors.New("worker.queue must be >= 0"))
	}
	switch c.Market.Source {
	case "yahoo", "static":
	default:
		errs = append(errs, fmt.Errorf("market.source %q: want yahoo or static", c.Market.Source))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want json or text", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ValidateRegistration checks the extra settings the register command needs.
func (c *Config) ValidateRegistration() error {
	var errs []error
	if c.Discord.ApplicationID == "" {
		errs = append(errs, errors.New("discord.application_id is required"))
	}
	if c.Discord.BotToken == "" {
		errs = append(errs, errors.New("discord.bot_token is required"))
	}
	return errors.Join(errs...)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
