package rbac

import (
	"fmt"

	"github.com/ulms/ulms-gateway/internal/shared"
)

// Mode selects how a required mask is matched.
type Mode int

const (
	// ModeAll requires every bit.
	ModeAll Mode = iota
	// ModeAny requires at least one bit.
	ModeAny
)

func (m Mode) String() string {
	if m == ModeAny {
		return "any"
	}
	return "all"
}

// Requirement is the permission a route demands.
type Requirement struct {
	Mask shared.PermissionMask
	Mode Mode
}

// All builds an ALL-mode requirement over the union of masks.
func All(masks ...shared.PermissionMask) *Requirement {
	return &Requirement{Mask: shared.Union(masks...), Mode: ModeAll}
}

// Any builds an ANY-mode requirement over the union of masks.
func Any(masks ...shared.PermissionMask) *Requirement {
	return &Requirement{Mask: shared.Union(masks...), Mode: ModeAny}
}

// Satisfied reports whether effective meets the requirement. A nil
// requirement is always satisfied.
func (r *Requirement) Satisfied(effective shared.PermissionMask) bool {
	if r == nil {
		return true
	}
	if r.Mode == ModeAny {
		return shared.HasAny(effective, r.Mask)
	}
	return shared.HasAll(effective, r.Mask)
}

func (r *Requirement) String() string {
	if r == nil {
		return "none"
	}
	return fmt.Sprintf("%s(%s)", r.Mode, r.Mask)
}

// Resolve picks the requirement that applies to a route: the method-level
// one when declared, else the group-level one, else none.
func Resolve(group, method *Requirement) *Requirement {
	if method != nil {
		return method
	}
	return group
}
