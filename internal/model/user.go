package model

import "time"

// Role names stored in users.role and sessions.role.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

// ValidRole reports whether r is one of the two supported roles.
func ValidRole(r string) bool { return r == RoleAdmin || r == RoleUser }

// User represents an application user record as stored in the
// `users` table.  Users are created through the admin invite flow and
// are never hard-deleted; deactivation flips IsActive instead.
//
// Fields:
//
//	ID           – opaque identifier (uuid string).
//	Name         – display name, also copied onto clients at creation.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.  Never serialized.
//	Role         – ADMIN or USER.
//	IsActive     – inactive users cannot log in.
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           string    `json:"id"`        // users.id
	Name         string    `json:"name"`      // users.name
	Email        string    `json:"email"`     // users.email
	PasswordHash string    `json:"-"`         // users.password
	Role         string    `json:"role"`      // users.role
	IsActive     bool      `json:"isActive"`  // users.is_active
	CreatedAt    time.Time `json:"createdAt"` // users.created_at
}
