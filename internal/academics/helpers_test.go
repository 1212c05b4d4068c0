package academics

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ulms/ulms-gateway/internal/backend/backendtest"
	"github.com/ulms/ulms-gateway/internal/rbac"
	"github.com/ulms/ulms-gateway/internal/shared"
)

type fixedPermissions shared.PermissionMask

func (f fixedPermissions) Effective(context.Context, string) (shared.PermissionMask, error) {
	return shared.PermissionMask(f), nil
}

type fixture struct {
	srv    *backendtest.Server
	router http.Handler
}

// newFixture mounts every academics handler behind a stub authenticator that
// signs requests in as user "u-1" holding mask.
func newFixture(t *testing.T, mask shared.PermissionMask) *fixture {
	t.Helper()
	srv := backendtest.New(t)
	reg := srv.Registry(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := rbac.Gate{Permissions: fixedPermissions(mask), Logger: logger}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.ContextWithPrincipal(r.Context(), &shared.Principal{ID: "u-1", IsActive: true})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Route("/courses", NewCoursesHandler(reg, gate, logger).MountRoutes)
	r.Route("/assignments", NewAssignmentsHandler(reg, gate, logger).MountRoutes)
	r.Route("/exams", NewExamsHandler(reg, gate, logger).MountRoutes)
	return &fixture{srv: srv, router: r}
}

func (f *fixture) reply(method string, body any) {
	f.srv.Handle(method, func(context.Context, json.RawMessage) (any, error) { return body, nil })
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("User-Agent", "exam-client/1.0")
	req.RemoteAddr = "203.0.113.9:4242"
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func ts(seconds int64) map[string]any {
	return map[string]any{"seconds": seconds, "nanos": 0}
}

func lastBody(t *testing.T, f *fixture) map[string]any {
	t.Helper()
	calls := f.srv.Calls()
	require.NotEmpty(t, calls)
	var out map[string]any
	require.NoError(t, json.Unmarshal(calls[len(calls)-1].Body, &out))
	return out
}
