package models

import (
	"slices"

	"github.com/google/uuid"
)

// Principal is an identity decoded from a verified access token
type Principal struct {
	ID    uuid.UUID
	Email string
	Roles []Role
}

// IsSelfOrHasRole reports whether principal is the target user itself or has the role
func (p Principal) IsSelfOrHasRole(targetID uuid.UUID, role Role) bool {
	return p.ID == targetID || slices.Contains(p.Roles, role)
}
