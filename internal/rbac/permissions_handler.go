package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ulms/ulms-gateway/internal/platform/httpx"
	"github.com/ulms/ulms-gateway/internal/shared"
)

// PermissionsHandler exposes the caller's effective mask.
type PermissionsHandler struct {
	permissions PermissionSource
	scope       Scope
}

// NewPermissionsHandler builds a PermissionsHandler.
func NewPermissionsHandler(permissions PermissionSource, gate Gate) *PermissionsHandler {
	return &PermissionsHandler{permissions: permissions, scope: gate.Scope(All(shared.PermUserRead))}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.scope.Route(nil)).Get("/permissions", h.effective)
}

type effectiveResponse struct {
	UserID      string                `json:"userId"`
	Permissions shared.PermissionMask `json:"permissions"`
}

func (h *PermissionsHandler) effective(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.Unauthenticated("User not authenticated"))
		return
	}
	mask, err := h.permissions.Effective(r.Context(), principal.ID)
	if err != nil {
		httpx.RespondError(w, httpx.Forbidden("Permission check failed"))
		return
	}
	httpx.JSON(w, http.StatusOK, effectiveResponse{UserID: principal.ID, Permissions: mask})
}
