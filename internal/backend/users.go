package backend

import (
	"context"
	"time"

	"github.com/ulms/ulms-gateway/internal/shared"
)

const methodFindOneByID = "FindOneById"

// UserRecord is the slice of the user-directory record needed for
// permission evaluation.
type UserRecord struct {
	ID             string                `json:"id"`
	IsActive       bool                  `json:"isActive"`
	Role           *shared.Role          `json:"role,omitempty"`
	ExtraPermsMask shared.PermissionMask `json:"extraPermsMask"`
}

// UserClient calls user.UserService.
type UserClient struct {
	registry *Registry
	timeout  time.Duration
}

// NewUserClient constructs the client.
func NewUserClient(registry *Registry, timeout time.Duration) *UserClient {
	return &UserClient{registry: registry, timeout: timeout}
}

// FindOneByID loads a user. A missing user yields (nil, nil).
func (c *UserClient) FindOneByID(ctx context.Context, id string) (*UserRecord, error) {
	h, err := c.registry.Service(Users)
	if err != nil {
		return nil, err
	}
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	var rec UserRecord
	if err := h.Invoke(ctx, methodFindOneByID, map[string]string{"id": id}, &rec); err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if rec.ID == "" {
		return nil, nil
	}
	return &rec, nil
}
