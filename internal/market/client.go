package market

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

const (
	defaultUserAgent = "Mozilla/5.0 (compatible; mfea-gateway/1.0)"
	maxResponseBytes = 4 << 20
)

// fetcher is the paced HTTP getter shared by the chart client and rate scraper.
type fetcher struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	logger     *slog.Logger
}

// Option configures outbound market-data clients.
type Option func(*fetcher)

// WithHTTPClient overrides the HTTP client. Tests inject cassette-backed clients here.
func WithHTTPClient(c *http.Client) Option {
	return func(f *fetcher) {
		f.httpClient = c
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(f *fetcher) {
		f.httpClient.Timeout = d
	}
}

// NewLimiter paces requests at rps with no burst. Zero or negative disables pacing.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

// WithLimiter paces requests with l. Pass the same limiter to every client that
// shares one request budget.
func WithLimiter(l *rate.Limiter) Option {
	return func(f *fetcher) {
		f.limiter = l
	}
}

// WithUserAgent sets the User-Agent header. Both upstreams reject empty agents,
// so an empty ua keeps the default.
func WithUserAgent(ua string) Option {
	return func(f *fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *fetcher) {
		f.logger = l
	}
}

func newFetcher(opts ...Option) *fetcher {
	f := &fetcher{
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limiter:   NewLimiter(2),
		userAgent: defaultUserAgent,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// get performs a paced GET. Any non-200 status is a data-unavailable error.
func (f *fetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", accept)

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, domain.ErrDataUnavailable("market data request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, domain.ErrDataUnavailable("read market data response").WithCause(err)
	}

	f.logger.DebugContext(ctx, "market data fetched",
		slog.String("host", req.URL.Host),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return nil, domain.ErrDataUnavailable(
			fmt.Sprintf("upstream %s returned status %d", req.URL.Host, resp.StatusCode),
		).WithCode(domain.ErrorCodeUpstreamStatus)
	}

	return body, nil
}
