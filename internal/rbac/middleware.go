package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ulms/ulms-gateway/internal/platform/httpx"
	"github.com/ulms/ulms-gateway/internal/shared"
)

// PermissionSource yields a user's effective mask.
type PermissionSource interface {
	Effective(ctx context.Context, userID string) (shared.PermissionMask, error)
}

// Gate enforces permission requirements on HTTP handlers. It expects the
// authenticator to have placed a principal in the request context.
type Gate struct {
	Permissions PermissionSource
	Logger      *slog.Logger
}

// Enforce returns middleware for an already-resolved requirement. A nil
// requirement passes every request through.
func (g Gate) Enforce(req *Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if req == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := g.Check(r.Context(), req); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Check evaluates req for the principal in ctx. Failures are always
// Unauthenticated or Forbidden; unexpected errors deny.
func (g Gate) Check(ctx context.Context, req *Requirement) error {
	if req == nil {
		return nil
	}
	principal := shared.PrincipalFromContext(ctx)
	if principal == nil {
		return httpx.Unauthenticated("User not authenticated")
	}
	effective, err := g.Permissions.Effective(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrForbidden) {
			return err
		}
		g.logger().Error("rbac permission check", slog.String("user", principal.ID), slog.Any("error", err))
		return httpx.Forbidden("Permission check failed")
	}
	if !req.Satisfied(effective) {
		return httpx.Forbidden("Insufficient permissions")
	}
	return nil
}

// Scope binds a group-level requirement so routes in the group can declare
// their own override at registration.
func (g Gate) Scope(group *Requirement) Scope {
	return Scope{gate: g, group: group}
}

func (g Gate) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Scope is a route group with an optional default requirement.
type Scope struct {
	gate  Gate
	group *Requirement
}

// Route returns middleware for one route. The method requirement, when
// non-nil, replaces the group requirement.
func (s Scope) Route(method *Requirement) func(http.Handler) http.Handler {
	return s.gate.Enforce(Resolve(s.group, method))
}
