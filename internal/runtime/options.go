package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"go.opentelemetry.io/otel/metric"

	"github.com/tjfontaine/mfea-gateway/internal/config"
	"github.com/tjfontaine/mfea-gateway/internal/followup"
	"github.com/tjfontaine/mfea-gateway/internal/market"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfigFile loads configuration from path, .env and the environment.
func WithConfigFile(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return errors.New("nil config")
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithMarketProvider replaces the snapshot source selected by market.source.
func WithMarketProvider(p market.Provider) Option {
	return func(g *Gateway) error {
		g.provider = p
		return nil
	}
}

// WithDeliverer replaces the follow-up webhook client.
func WithDeliverer(d followup.Deliverer) Option {
	return func(g *Gateway) error {
		g.followups = d
		return nil
	}
}

// WithMeter records dispatcher metrics on meter.
func WithMeter(meter metric.Meter) Option {
	return func(g *Gateway) error {
		g.meter = meter
		return nil
	}
}

// WithListener serves on ln instead of listening on server.port.
func WithListener(ln net.Listener) Option {
	return func(g *Gateway) error {
		g.listener = ln
		return nil
	}
}
