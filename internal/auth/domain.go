// Package auth establishes caller identity by delegating every credential
// check to the identity service.
package auth

import (
	"context"

	"github.com/ulms/ulms-gateway/internal/backend"
)

// IdentityService is the subset of the identity backend used here.
type IdentityService interface {
	Authorize(ctx context.Context, credential string) (*backend.AuthorizeResponse, error)
	Refresh(ctx context.Context, credential string) (*backend.RefreshResponse, error)
	Login(ctx context.Context, req backend.LoginRequest) (map[string]any, error)
	Signup(ctx context.Context, req backend.SignupRequest) (map[string]any, error)
	VerifyUser(ctx context.Context, userID, otp string) (map[string]any, error)
	ResendOtp(ctx context.Context, userID string) (map[string]any, error)
}

// HeaderAuthorization is the inbound credential header.
const HeaderAuthorization = "Authorization"
