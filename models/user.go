package models

import (
	"database/sql"
	"strings"
	"time"
)

// User represents a row in the "users" table.
// Users are created by the registration flow; this module only reads them
// and keeps IsBOAMember in step with MembershipNo.
type User struct {
	ID           int64
	Name         string
	Email        string
	MembershipNo sql.NullString
	IsBOAMember  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasMembershipNo reports whether the user carries a non-blank membership number.
func (u *User) HasMembershipNo() bool {
	return u.MembershipNo.Valid && strings.TrimSpace(u.MembershipNo.String) != ""
}

// CreateUserParams holds the fields required to create a new user.
// Keeping input types separate from the domain model prevents accidental
// mass-assignment and makes API contracts explicit.
type CreateUserParams struct {
	Name         string
	Email        string
	MembershipNo *string
}
