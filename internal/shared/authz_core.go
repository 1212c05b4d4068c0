package shared

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// PermissionMask is a 64-bit capability set. Bit meanings are owned by the
// identity contracts; the gateway only combines and compares masks.
type PermissionMask uint64

// Core platform permissions.
const (
	PermUserRead PermissionMask = 1 << iota
	PermUserWrite
	PermCourseRead
	PermCourseWrite
	PermAssignmentRead
	PermAssignmentWrite
	PermAssignmentSubmit
	PermExamRead
	PermExamWrite
	PermExamTake
	PermExamGrade
	PermProctorView
)

// Union returns the bitwise OR of all masks.
func Union(masks ...PermissionMask) PermissionMask {
	var out PermissionMask
	for _, m := range masks {
		out |= m
	}
	return out
}

// HasAll reports whether effective contains every bit of required.
func HasAll(effective, required PermissionMask) bool {
	return effective&required == required
}

// HasAny reports whether effective shares at least one bit with required.
// A zero requirement always passes.
func HasAny(effective, required PermissionMask) bool {
	if required == 0 {
		return true
	}
	return effective&required != 0
}

// String renders the mask as a decimal string.
func (m PermissionMask) String() string {
	return strconv.FormatUint(uint64(m), 10)
}

// MarshalJSON encodes the mask as a decimal string so JavaScript clients
// keep all 64 bits.
func (m PermissionMask) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a JSON number or a decimal string. Numbers are parsed
// from their literal text, never through float64.
func (m *PermissionMask) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" {
			*m = 0
			return nil
		}
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("permission mask: %w", err)
	}
	*m = PermissionMask(v)
	return nil
}
