package models

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Roles every new user gets
var DefaultRoles = []Role{RoleUser}

// Optional profile fields, nil if not set
type Profile struct {
	FirstName *string `json:"firstname,omitempty"`
	LastName  *string `json:"lastname,omitempty"`
	ImageURL  *string `json:"imageUrl,omitempty"`
}

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Username *string   `json:"username,omitempty"` // nil if user registered without username
	Profile

	PasswordHash string    `json:"passwordHash"`
	Roles        []Role    `json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u User) HasRole(role Role) bool {
	return slices.Contains(u.Roles, role)
}

// UserView is what may leave the service: user without secrets
type UserView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username,omitempty"`
	Roles     []Role    `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Profile
}

func ToPublicView(u User) UserView {
	return UserView{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Profile:   u.Profile,
		Roles:     slices.Clone(u.Roles),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
