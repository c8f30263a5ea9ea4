package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

// chartJSON renders a v8 chart payload; a negative close is emitted as null.
func chartJSON(closes []float64) string {
	vals := make([]string, len(closes))
	ts := make([]string, len(closes))
	for i, c := range closes {
		ts[i] = fmt.Sprint(1700000000 + i*86400)
		if c < 0 {
			vals[i] = "null"
			continue
		}
		vals[i] = fmt.Sprint(c)
	}
	return fmt.Sprintf(`{"chart":{"result":[{"meta":{"symbol":"^GSPC","regularMarketTime":1721000000},`+
		`"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`,
		strings.Join(ts, ","), strings.Join(vals, ","))
}

func newChartServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chart/^GSPC", r.URL.Path)
		assert.Equal(t, "1y", r.URL.Query().Get("range"))
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChartClient_DailyCloses(t *testing.T) {
	srv := newChartServer(t, http.StatusOK, chartJSON([]float64{1, 2, -1, 4}))
	c := NewChartClient(srv.URL+"/chart", WithHTTPClient(srv.Client()), WithLimiter(NewLimiter(0)))

	h, err := c.DailyCloses(context.Background(), "^GSPC")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 4}, h.Closes)
	assert.Equal(t, "^GSPC", h.Symbol)
	assert.Equal(t, int64(1721000000), h.AsOf.Unix())
}

func TestChartClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode domain.ErrorCode
	}{
		{"non-200 status", http.StatusTooManyRequests, `Too Many Requests`, domain.ErrorCodeUpstreamStatus},
		{"chart error", http.StatusOK, `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`, domain.ErrorCodeUpstreamStatus},
		{"empty result", http.StatusOK, `{"chart":{"result":[],"error":null}}`, domain.ErrorCodeInsufficientHistory},
		{"malformed json", http.StatusOK, `{"chart":`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChartServer(t, tt.status, tt.body)
			c := NewChartClient(srv.URL+"/chart", WithHTTPClient(srv.Client()), WithLimiter(NewLimiter(0)))

			_, err := c.DailyCloses(context.Background(), "^GSPC")
			require.Error(t, err)
			assert.True(t, domain.IsType(err, domain.ErrorTypeDataUnavailable))
			assert.Equal(t, tt.wantCode, domain.ToAPIError(err).Code)
		})
	}
}
