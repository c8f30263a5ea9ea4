// Package runtime assembles the gateway from configuration and manages its
// lifecycle. A Gateway can run standalone or be embedded in a larger program.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/metric"

	"github.com/tjfontaine/mfea-gateway/internal/auth"
	"github.com/tjfontaine/mfea-gateway/internal/config"
	"github.com/tjfontaine/mfea-gateway/internal/followup"
	"github.com/tjfontaine/mfea-gateway/internal/interaction"
	"github.com/tjfontaine/mfea-gateway/internal/market"
	"github.com/tjfontaine/mfea-gateway/internal/server"
	"github.com/tjfontaine/mfea-gateway/internal/worker"
)

// Gateway owns the HTTP server, the background worker pool, and everything
// wired between them.
type Gateway struct {
	// Injected via options
	cfg       *config.Config
	logger    *slog.Logger
	provider  market.Provider
	followups followup.Deliverer
	meter     metric.Meter
	listener  net.Listener

	// Built in New
	verifier *auth.Verifier
	pool     *worker.Pool
	handler  *interaction.Handler
	server   *server.Server

	// Lifecycle
	mu      sync.Mutex
	started bool
	addr    net.Addr
	wg      conc.WaitGroup
	errCh   chan error
}

// New builds a Gateway. A config is required (WithConfig or WithConfigFile).
func New(opts ...Option) (*Gateway, error) {
	gw := &Gateway{
		logger: slog.Default(),
		errCh:  make(chan error, 1),
	}

	for _, opt := range opts {
		if err := opt(gw); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if gw.cfg == nil {
		return nil, errors.New("config required (use WithConfig or WithConfigFile)")
	}
	if err := gw.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var err error
	if gw.verifier, err = auth.NewVerifier(gw.cfg.Discord.PublicKey); err != nil {
		return nil, fmt.Errorf("create verifier: %w", err)
	}

	if gw.provider == nil {
		gw.provider = newProvider(gw.cfg.Market, gw.logger)
	}
	if gw.followups == nil {
		gw.followups = followup.NewClient(followup.Config{
			APIBase:       gw.cfg.Discord.APIBase,
			ApplicationID: gw.cfg.Discord.ApplicationID,
		})
	}

	gw.pool, err = worker.New(worker.Config{
		Workers:     gw.cfg.Worker.Workers,
		Queue:       gw.cfg.Worker.Queue,
		TaskTimeout: gw.cfg.Worker.TaskTimeout,
		Logger:      gw.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	gw.handler, err = interaction.New(interaction.Config{
		Provider:  gw.provider,
		Followups: gw.followups,
		Pool:      gw.pool,
		Logger:    gw.logger,
		Meter:     gw.meter,
	})
	if err != nil {
		_ = gw.pool.Shutdown(context.Background())
		return nil, fmt.Errorf("create interaction handler: %w", err)
	}

	gw.server = server.New(server.Config{
		Port:           gw.cfg.Server.Port,
		RequestTimeout: gw.cfg.Server.RequestTimeout,
		MaxBodyBytes:   gw.cfg.Server.MaxBodyBytes,
		ServiceName:    gw.cfg.Telemetry.ServiceName,
	}, gw.logger, gw.verifier, gw.handler)

	return gw, nil
}

// newProvider picks the snapshot source named by cfg.Source.
func newProvider(cfg config.MarketConfig, logger *slog.Logger) market.Provider {
	if cfg.Source == "static" {
		logger.Info("using static market snapshot")
		return market.NewStaticProvider()
	}

	// One budget for both upstreams.
	opts := []market.Option{
		market.WithTimeout(cfg.HTTPTimeout),
		market.WithLimiter(market.NewLimiter(cfg.RequestsPerSecond)),
		market.WithUserAgent(cfg.UserAgent),
		market.WithLogger(logger),
	}
	chart := market.NewChartClient(cfg.ChartURL, opts...)

	var rate *market.RateScraper
	if cfg.RateURL != "" {
		rate = market.NewRateScraper(cfg.RateURL, opts...)
	} else {
		logger.Info("market.rate_url is empty; snapshots carry no risk-free rate")
	}
	return market.NewLiveProvider(cfg.Symbol, chart, rate, logger)
}

// Start begins serving in the background. Serve failures are reported on Err.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return errors.New("gateway already started")
	}

	ln := g.listener
	if ln == nil {
		var lc net.ListenConfig
		var err error
		ln, err = lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", g.cfg.Server.Port))
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	g.addr = ln.Addr()
	g.started = true

	g.wg.Go(func() {
		if err := g.server.Serve(ln); err != nil {
			g.logger.Error("server failed", slog.String("error", err.Error()))
			g.errCh <- err
		}
	})

	g.logger.Info("gateway started",
		slog.String("addr", g.addr.String()),
		slog.String("market_source", g.cfg.Market.Source),
		slog.Int("workers", g.cfg.Worker.Workers),
		slog.Int("queue", g.cfg.Worker.Queue))

	return nil
}

// Err delivers the first fatal serve error, if any.
func (g *Gateway) Err() <-chan error { return g.errCh }

// Addr returns the bound listen address, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addr
}

// Shutdown stops accepting requests, then drains queued background tasks.
// Both steps share ctx, further bounded by server.shutdown_timeout.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway",
		slog.Int("queued", g.pool.Queued()),
		slog.Int64("in_flight", g.pool.InFlight()))

	if d := g.cfg.Server.ShutdownTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	var errs []error
	if g.started {
		if err := g.server.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
		}
		g.wg.Wait()
	}

	if err := g.pool.Shutdown(ctx); err != nil {
		g.logger.Error("failed to drain worker pool",
			slog.String("error", err.Error()),
			slog.Int("queued", g.pool.Queued()),
			slog.Int64("in_flight", g.pool.InFlight()))
		errs = append(errs, err)
	}

	g.logger.Info("gateway shutdown complete")
	return errors.Join(errs...)
}
