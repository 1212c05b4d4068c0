package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/platform/httpx"
	"github.com/ulms/ulms-gateway/internal/shared"
)

// Service validates access and refresh credentials. Tokens are opaque and
// never cached; the identity service is the sole authority.
type Service struct {
	identity IdentityService
}

// NewService constructs a Service.
func NewService(identity IdentityService) *Service {
	return &Service{identity: identity}
}

// Authenticate resolves the principal behind an access credential.
func (s *Service) Authenticate(ctx context.Context, credential string) (*shared.Principal, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, httpx.Unauthenticated("missing token")
	}
	resp, err := s.identity.Authorize(ctx, credential)
	if err != nil {
		return nil, remoteError(err)
	}
	if !resp.Valid || resp.User == nil {
		return nil, httpx.Unauthenticated("invalid token")
	}
	return resp.User.Principal(), nil
}

// Refresh exchanges a refresh credential for a new token pair.
func (s *Service) Refresh(ctx context.Context, credential string) (*shared.TokenPair, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, httpx.Unauthenticated("missing token")
	}
	resp, err := s.identity.Refresh(ctx, credential)
	if err != nil {
		return nil, remoteError(err)
	}
	if !resp.Ack {
		return nil, httpx.Unauthenticated("invalid token")
	}
	return &shared.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// remoteError re-raises an identity Unauthenticated status with the message
// from its detail. Every other failure is returned unchanged.
func remoteError(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated {
		return err
	}
	msg := backend.StatusMessage(st)
	if msg == "" {
		msg = "invalid token"
	}
	return httpx.Unauthenticated(msg)
}
