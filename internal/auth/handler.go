package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/platform/httpx"
	"github.com/ulms/ulms-gateway/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	identity   IdentityService
	middleware Middleware
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, identity IdentityService, middleware Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		identity:   identity,
		middleware: middleware,
		validator:  validator.New(),
	}
}

// MountRoutes registers /auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/signup", h.handleSignup)
	r.Post("/verify/{id}", h.handleVerify)
	r.Post("/resend-otp/{id}", h.handleResendOtp)
	r.With(h.middleware.Refresh).Post("/refresh", h.handleRefresh)
}

// MountMe registers the principal echo route. It must sit behind Authenticate.
func (h *Handler) MountMe(r chi.Router) {
	r.Get("/", h.handleMe)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req backend.LoginRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.identity.Login(r.Context(), req)
	h.respond(w, "login", http.StatusCreated, resp, err)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req backend.SignupRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.identity.Signup(r.Context(), req)
	h.respond(w, "signup", http.StatusCreated, resp, err)
}

type verifyRequest struct {
	OTP string `json:"otp" validate:"required"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := httpx.DecodeValid(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.identity.VerifyUser(r.Context(), chi.URLParam(r, "id"), req.OTP)
	h.respond(w, "verify", http.StatusOK, resp, err)
}

func (h *Handler) handleResendOtp(w http.ResponseWriter, r *http.Request) {
	resp, err := h.identity.ResendOtp(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "resend otp", http.StatusCreated, resp, err)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	pair := shared.TokenPairFromContext(r.Context())
	if pair == nil {
		httpx.RespondError(w, httpx.Unauthenticated("invalid token"))
		return
	}
	httpx.JSON(w, http.StatusCreated, pair)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, httpx.Unauthenticated("User not authenticated"))
		return
	}
	httpx.JSON(w, http.StatusOK, principal)
}

func (h *Handler) respond(w http.ResponseWriter, op string, status int, body any, err error) {
	if err != nil {
		classified := backend.Classify(err)
		if httpx.StatusOf(classified) >= http.StatusInternalServerError {
			h.logger.Error("auth "+op, slog.Any("error", err))
		}
		httpx.RespondError(w, classified)
		return
	}
	httpx.JSON(w, status, body)
}
