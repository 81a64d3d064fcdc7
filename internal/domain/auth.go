package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownRole is returned when a role value is outside the declared set.
var ErrUnknownRole = errors.New("unknown role")

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleUser}

// ParseRole converts raw input to a Role, rejecting anything outside the set.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string {
	return string(r)
}

// UnmarshalText implements encoding.TextUnmarshaler so decoded payloads
// cannot carry an unknown role.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, string(r))
	}
	return []byte(r), nil
}

// Identity is the authenticated subject of a single request.
type Identity struct {
	SubjectID   string `json:"userId"`
	DisplayName string `json:"name"`
	Role        Role   `json:"role"`
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Token describes an issued session token.
type Token struct {
	ID        string
	SubjectID string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}
