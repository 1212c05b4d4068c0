package shared

import (
	"context"
	"time"
)

// Role is the principal's role together with its granted mask.
type Role struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	PermsMask PermissionMask `json:"permsMask"`
}

// Principal is the authenticated identity attached to a request.
type Principal struct {
	ID             string         `json:"id"`
	Name           string         `json:"name,omitempty"`
	Email          string         `json:"email,omitempty"`
	Role           *Role          `json:"role,omitempty"`
	ExtraPermsMask PermissionMask `json:"extraPermsMask"`
	IsActive       bool           `json:"isActive"`
	IsVerified     bool           `json:"isVerified,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// TokenPair is a freshly issued access/refresh credential pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type principalContextKey struct{}

type tokenPairContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}

// ContextWithTokenPair stores a refreshed token pair in context.
func ContextWithTokenPair(ctx context.Context, pair *TokenPair) context.Context {
	return context.WithValue(ctx, tokenPairContextKey{}, pair)
}

// TokenPairFromContext extracts the refreshed token pair from context.
func TokenPairFromContext(ctx context.Context) *TokenPair {
	pair, _ := ctx.Value(tokenPairContextKey{}).(*TokenPair)
	return pair
}
