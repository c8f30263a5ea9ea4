package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/mfea-gateway/internal/auth"
	"github.com/tjfontaine/mfea-gateway/internal/domain"
)

// DefaultMaxBodyBytes bounds inbound interaction bodies.
const DefaultMaxBodyBytes = 1 << 20

type rawBodyKey struct{}

// SignatureMiddleware reads the raw body, verifies the platform signature over it
// and only then hands the request on. The body is restored for the next handler and
// is also available through RawBody. Rejected requests get 401 and the body is
// never logged.
func SignatureMiddleware(verifier *auth.Verifier, maxBodyBytes int64, logger *slog.Logger) func(http.Handler) http.Handler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			if err != nil {
				AddError(r.Context(), err)
				WriteError(w, domain.ErrInvalidRequest("unreadable request body").
					WithCode(domain.ErrorCodeMalformedBody).WithCause(err))
				return
			}

			if err := verifier.VerifyRequest(r, body); err != nil {
				logger.Error("interaction signature rejected",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("remote_addr", r.RemoteAddr),
				)
				AddError(r.Context(), err)
				WriteError(w, domain.ErrAuthentication("Invalid request signature").WithCause(err))
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := context.WithValue(r.Context(), rawBodyKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RawBody returns the verified request body, or nil outside SignatureMiddleware.
func RawBody(ctx context.Context) []byte {
	body, _ := ctx.Value(rawBodyKey{}).([]byte)
	return body
}
