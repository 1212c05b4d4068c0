package backend

import (
	"context"
	"time"

	"google.golang.org/grpc/metadata"

	"github.com/ulms/ulms-gateway/internal/shared"
)

// Identity service methods.
const (
	methodAuthorize  = "Authorize"
	methodRefresh    = "Refresh"
	methodLogin      = "Login"
	methodSignup     = "Signup"
	methodVerifyUser = "VerifyUser"
	methodResendOtp  = "ResendOtp"
)

// AuthorizationMetadataKey carries the caller credential on identity calls.
const AuthorizationMetadataKey = "authorization"

// WireUser is the user document returned by the identity service.
type WireUser struct {
	ID             string                `json:"id"`
	Name           string                `json:"name,omitempty"`
	Email          string                `json:"email,omitempty"`
	Role           *shared.Role          `json:"role,omitempty"`
	ExtraPermsMask shared.PermissionMask `json:"extraPermsMask"`
	IsActive       bool                  `json:"isActive"`
	IsVerified     bool                  `json:"isVerified,omitempty"`
	CreatedAt      Timestamp             `json:"createdAt"`
	UpdatedAt      Timestamp             `json:"updatedAt"`
}

// Principal converts the wire user, restoring native timestamps.
func (u *WireUser) Principal() *shared.Principal {
	return &shared.Principal{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		ExtraPermsMask: u.ExtraPermsMask,
		IsActive:       u.IsActive,
		IsVerified:     u.IsVerified,
		CreatedAt:      u.CreatedAt.Time(),
		UpdatedAt:      u.UpdatedAt.Time(),
	}
}

// AuthorizeResponse is the identity service verdict on an access credential.
type AuthorizeResponse struct {
	Valid bool      `json:"valid"`
	User  *WireUser `json:"user,omitempty"`
}

// RefreshResponse is the identity service verdict on a refresh credential.
type RefreshResponse struct {
	Ack          bool   `json:"ack"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginRequest is forwarded to Login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignupRequest is forwarded to Signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// IdentityClient calls auth.AuthService. Credential checks run under a fixed
// deadline so a stalled identity service cannot hang the request.
type IdentityClient struct {
	registry *Registry
	timeout  time.Duration
}

// NewIdentityClient constructs the client. A zero timeout disables the deadline.
func NewIdentityClient(registry *Registry, timeout time.Duration) *IdentityClient {
	return &IdentityClient{registry: registry, timeout: timeout}
}

// Authorize validates an access credential. The credential travels as call
// metadata; the request message is empty.
func (c *IdentityClient) Authorize(ctx context.Context, credential string) (*AuthorizeResponse, error) {
	var resp AuthorizeResponse
	if err := c.credentialCall(ctx, methodAuthorize, credential, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh exchanges a refresh credential for a new token pair.
func (c *IdentityClient) Refresh(ctx context.Context, credential string) (*RefreshResponse, error) {
	var resp RefreshResponse
	if err := c.credentialCall(ctx, methodRefresh, credential, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Login forwards credentials and returns the identity service reply verbatim.
func (c *IdentityClient) Login(ctx context.Context, req LoginRequest) (map[string]any, error) {
	return c.registry.Call(ctx, Identity, methodLogin, req)
}

// Signup registers a new account.
func (c *IdentityClient) Signup(ctx context.Context, req SignupRequest) (map[string]any, error) {
	return c.registry.Call(ctx, Identity, methodSignup, req)
}

// VerifyUser confirms an account with a one-time password.
func (c *IdentityClient) VerifyUser(ctx context.Context, userID, otp string) (map[string]any, error) {
	return c.registry.Call(ctx, Identity, methodVerifyUser, map[string]string{"userId": userID, "otp": otp})
}

// ResendOtp asks the identity service to issue a new one-time password.
func (c *IdentityClient) ResendOtp(ctx context.Context, userID string) (map[string]any, error) {
	return c.registry.Call(ctx, Identity, methodResendOtp, map[string]string{"userId": userID})
}

func (c *IdentityClient) credentialCall(ctx context.Context, method, credential string, resp any) error {
	h, err := c.registry.Service(Identity)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, AuthorizationMetadataKey, credential)
	return h.Invoke(ctx, method, struct{}{}, resp)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
