package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratePageServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		agents []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		_, _ = w.Write([]byte(`<span class="QuoteStrip-lastPrice">4.50%</span>`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), agents...)
	}
}

func TestWithLimiter_SharedAcrossClients(t *testing.T) {
	srv, _ := ratePageServer(t)

	// One request per minute: the first client spends the only token.
	l := NewLimiter(1.0 / 60)
	first := NewRateScraper(srv.URL, WithHTTPClient(srv.Client()), WithLimiter(l))
	second := NewRateScraper(srv.URL, WithHTTPClient(srv.Client()), WithLimiter(l))

	_, err := first.Rate(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = second.Rate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestNewLimiter_NonPositiveDisablesPacing(t *testing.T) {
	l := NewLimiter(0)
	for i := 0; i < 10; i++ {
		assert.True(t, l.Allow())
	}
}

func TestWithUserAgent(t *testing.T) {
	srv, agents := ratePageServer(t)

	custom := NewRateScraper(srv.URL, WithHTTPClient(srv.Client()), WithLimiter(NewLimiter(0)), WithUserAgent("mfea-test/2.0"))
	_, err := custom.Rate(context.Background())
	require.NoError(t, err)

	fallback := NewRateScraper(srv.URL, WithHTTPClient(srv.Client()), WithLimiter(NewLimiter(0)), WithUserAgent(""))
	_, err = fallback.Rate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"mfea-test/2.0", defaultUserAgent}, agents())
}
