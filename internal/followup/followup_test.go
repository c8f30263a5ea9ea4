package followup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

func TestClient_URL(t *testing.T) {
	c := NewClient(Config{APIBase: "https://example.test/api/v10/", ApplicationID: "123"})
	assert.Equal(t, "https://example.test/api/v10/webhooks/123/abc.def", c.URL("abc.def"))
}

func TestClient_Deliver(t *testing.T) {
	var (
		calls   atomic.Int32
		gotPath string
		gotCT   string
		gotBody domain.Message
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotPath = r.URL.Path
		gotCT = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(Config{APIBase: srv.URL, ApplicationID: "app", HTTPClient: srv.Client()})
	res := c.Deliver(context.Background(), "tok", domain.Message{Content: "The bot is awake and ready!"})

	require.True(t, res.Delivered())
	assert.NoError(t, res.Err())
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "/webhooks/app/tok", gotPath)
	assert.Equal(t, "application/json", gotCT)
	assert.Equal(t, "The bot is awake and ready!", gotBody.Content)
}

func TestClient_DeliverRejected(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Unknown Webhook","code":10015}`))
	}))
	defer srv.Close()

	c := NewClient(Config{APIBase: srv.URL, ApplicationID: "app", HTTPClient: srv.Client()})
	res := c.Deliver(context.Background(), "expired", domain.Message{Content: "late"})

	assert.Equal(t, StatusRejected, res.Status)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, res.Body, "Unknown Webhook")
	assert.True(t, domain.IsType(res.Err(), domain.ErrorTypeDelivery))
	assert.Equal(t, int32(1), calls.Load(), "rejections are not retried")
}

func TestClient_DeliverTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	c := NewClient(Config{APIBase: base, ApplicationID: "app"})
	res := c.Deliver(context.Background(), "secret-token", domain.Message{Content: "x"})

	assert.Equal(t, StatusTransportError, res.Status)
	require.Error(t, res.Cause)
	assert.NotContains(t, res.Cause.Error(), "secret-token")
	assert.True(t, domain.IsType(res.Err(), domain.ErrorTypeDelivery))
}

type countingDeliverer struct {
	mu     sync.Mutex
	tokens []string
}

func (d *countingDeliverer) Deliver(_ context.Context, token string, _ domain.Message) DeliveryResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tokens = append(d.tokens, token)
	return DeliveryResult{Status: StatusDelivered}
}

func TestResponder_SingleUse(t *testing.T) {
	d := &countingDeliverer{}
	r := NewResponder(d, "tok")

	res, err := r.Send(context.Background(), domain.Message{Content: "first"})
	require.NoError(t, err)
	assert.True(t, res.Delivered())

	_, err = r.Send(context.Background(), domain.Message{Content: "second"})
	assert.True(t, errors.Is(err, ErrTokenConsumed))
	assert.Equal(t, []string{"tok"}, d.tokens)
}

func TestResponder_ConcurrentSend(t *testing.T) {
	d := &countingDeliverer{}
	r := NewResponder(d, "tok")

	var (
		wg       sync.WaitGroup
		consumed atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Send(context.Background(), domain.Message{Content: "x"}); errors.Is(err, ErrTokenConsumed) {
				consumed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, d.tokens, 1)
	assert.Equal(t, int32(15), consumed.Load())
}
