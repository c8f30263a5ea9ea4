package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/mfea-gateway/internal/followup"
)

// RegistrarConfig configures a Registrar.
type RegistrarConfig struct {
	APIBase       string
	ApplicationID string
	BotToken      string
	GuildID       string // empty registers globally
	HTTPClient    *http.Client
	Logger        *slog.Logger

	MaxTries        uint
	InitialInterval time.Duration
	MaxElapsed      time.Duration
}

// Registrar bulk-overwrites the application's commands.
type Registrar struct {
	cfg    RegistrarConfig
	client *http.Client
	logger *slog.Logger
}

// NewRegistrar creates a registrar.
func NewRegistrar(cfg RegistrarConfig) (*Registrar, error) {
	if cfg.ApplicationID == "" {
		return nil, errors.New("application id is required")
	}
	if cfg.BotToken == "" {
		return nil, errors.New("bot token is required to register commands")
	}
	if cfg.APIBase == "" {
		cfg.APIBase = followup.DefaultAPIBase
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 5
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = time.Minute
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Registrar{cfg: cfg, client: client, logger: logger}, nil
}

// Endpoint returns the bulk-overwrite URL, guild scoped when a guild id is set.
func (r *Registrar) Endpoint() string {
	app := url.PathEscape(r.cfg.ApplicationID)
	if r.cfg.GuildID != "" {
		return fmt.Sprintf("%s/applications/%s/guilds/%s/commands", r.cfg.APIBase, app, url.PathEscape(r.cfg.GuildID))
	}
	return fmt.Sprintf("%s/applications/%s/commands", r.cfg.APIBase, app)
}

// Register replaces the registered commands with cmds. Rate limits honour
// Retry-After, 5xx responses back off exponentially and other 4xx fail at once.
func (r *Registrar) Register(ctx context.Context, cmds []ApplicationCommand) ([]RegisteredCommand, error) {
	body, err := json.Marshal(cmds)
	if err != nil {
		return nil, fmt.Errorf("marshal commands: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval

	op := func() ([]RegisteredCommand, error) {
		return r.put(ctx, body)
	}

	registered, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.cfg.MaxTries),
		backoff.WithMaxElapsedTime(r.cfg.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("command registration retrying",
				slog.Any("error", err),
				slog.Duration("next_attempt_in", next),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("register commands: %w", err)
	}

	r.logger.Info("commands registered",
		slog.Int("count", len(registered)),
		slog.Bool("guild_scoped", r.cfg.GuildID != ""),
	)
	return registered, nil
}

func (r *Registrar) put(ctx context.Context, body []byte) ([]RegisteredCommand, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bot "+r.cfg.BotToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "DiscordBot (https://github.com/tjfontaine/mfea-gateway, 1.0)")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("put commands: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var out []RegisteredCommand
		if err := json.Unmarshal(respBody, &out); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decode registered commands: %w", err))
		}
		return out, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, backoff.RetryAfter(retryAfterSeconds(resp.Header, respBody))

	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("platform returned status %d", resp.StatusCode)

	default:
		return nil, backoff.Permanent(fmt.Errorf("platform returned status %d: %s", resp.StatusCode, truncate(respBody, 256)))
	}
}

// retryAfterSeconds reads the wait from the Retry-After header or the JSON
// retry_after field, rounding up to whole seconds.
func retryAfterSeconds(h http.Header, body []byte) int {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return int(math.Ceil(secs))
		}
	}
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return int(math.Ceil(payload.RetryAfter))
	}
	return 1
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
