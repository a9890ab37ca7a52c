package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/noeltrans/dispatch_services/internal/relay_service/adapters/chat"
)

// MaxRequestBodySize bounds every webhook body read by the relay.
const MaxRequestBodySize = 1 << 20 // 1 MB

// SlackSignatureMiddleware rejects requests whose v0 signature does not match signingSecret.
// The body is buffered for verification and restored for the handler.
// An empty secret disables verification.
func SlackSignatureMiddleware(signingSecret string, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "signature_middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if signingSecret == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, "Error reading request body", http.StatusBadRequest)
				return
			}
			_ = r.Body.Close()

			if err := chat.VerifySignature(signingSecret, r.Header, body); err != nil {
				logger.WarnContext(ctx, "Rejected request with invalid signature",
					"request_id", chi_middleware.GetReqID(ctx), "path", r.URL.Path, "error", err)
				http.Error(w, "Invalid request signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r.ContentLength = int64(len(body))
			next.ServeHTTP(w, r)
		})
	}
}
