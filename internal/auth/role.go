// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "github.com/samber/oops"

// Role is the coarse authorization tier of a user.
type Role string

// Known roles. The set is closed; ParseRole rejects anything else.
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// ParseRole converts a stored or user-supplied role string.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", oops.Code("AUTH_INVALID_ROLE").With("role", s).Wrap(ErrInvalidInput)
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// IsAdmin reports whether r grants administrative access.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// Satisfies reports whether r meets the minimum requirement.
// An admin requirement is met by admin or superadmin; a superadmin
// requirement only by superadmin; a user requirement by any known role.
func (r Role) Satisfies(required Role) bool {
	switch required {
	case RoleUser:
		return r.Valid()
	case RoleAdmin:
		return r.IsAdmin()
	case RoleSuperadmin:
		return r == RoleSuperadmin
	}
	return false
}

// String returns the role name.
func (r Role) String() string {
	return string(r)
}
