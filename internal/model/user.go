package model

import (
	"github.com/google/uuid"
)

// Role is a role a user can hold and act under.
type Role string

const (
	RolePatient   Role = "PATIENT"
	RoleDoctor    Role = "DOCTOR"
	RoleAttendant Role = "ATTENDANT"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAttendant:
		return true
	}
	return false
}

// User is an identity with the set of roles assigned to it.
type User struct {
	ID    uuid.UUID `json:"id" db:"id"`
	Roles []Role    `json:"roles" db:"-"`
}

// HasRole reports whether the user was assigned role.
func (u *User) HasRole(role Role) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Actor is the caller of an operation together with the role it is acting
// under for this request.
type Actor struct {
	UserID     uuid.UUID `json:"user_id"`
	ActiveRole Role      `json:"active_role"`
}

func NewActor(userID uuid.UUID, role Role) Actor {
	return Actor{UserID: userID, ActiveRole: role}
}
