package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/platform/httpx"
	"github.com/ulms/ulms-gateway/internal/shared"
)

// Middleware guards routes with the access and refresh flows.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate requires a valid access credential and stores the principal
// in the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.Service.Authenticate(r.Context(), r.Header.Get(HeaderAuthorization))
		if err != nil {
			m.fail(w, "authenticate", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// Refresh requires a valid refresh credential and stores the new token pair
// in the request context.
func (m Middleware) Refresh(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pair, err := m.Service.Refresh(r.Context(), r.Header.Get(HeaderAuthorization))
		if err != nil {
			m.fail(w, "refresh", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithTokenPair(r.Context(), pair)))
	})
}

func (m Middleware) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrUnauthorized) && m.Logger != nil {
		m.Logger.Warn("auth "+op, slog.Any("error", err))
	}
	httpx.RespondError(w, backend.Classify(err))
}
