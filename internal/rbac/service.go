package rbac

import (
	"context"

	"github.com/ulms/ulms-gateway/internal/backend"
	"github.com/ulms/ulms-gateway/internal/shared"
)

// UserLookup loads user records from the user directory.
type UserLookup interface {
	FindOneByID(ctx context.Context, id string) (*backend.UserRecord, error)
}

// Evaluator computes effective permission masks. Results are never cached;
// every call reaches the user directory.
type Evaluator struct {
	users UserLookup
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(users UserLookup) *Evaluator {
	return &Evaluator{users: users}
}

// Effective returns role bits OR override bits for the user, or zero when the
// user is unknown or inactive.
func (e *Evaluator) Effective(ctx context.Context, userID string) (shared.PermissionMask, error) {
	rec, err := e.users.FindOneByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if rec == nil || !rec.IsActive {
		return 0, nil
	}
	var role shared.PermissionMask
	if rec.Role != nil {
		role = rec.Role.PermsMask
	}
	return shared.Union(role, rec.ExtraPermsMask), nil
}
