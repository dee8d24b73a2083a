package model

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

// Role is the closed set of roles a user may hold. The same type is used
// for the users.role column and for the role claim of access tokens, so
// an unknown value is rejected wherever it is decoded.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ErrInvalidRole is returned when a value outside the known roles is decoded.
var ErrInvalidRole = errors.New("invalid role")

// ParseRole converts s into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

func (r Role) String() string { return string(r) }

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, string(r))
	}
	return []byte(r), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It is used by
// encoding/json, which covers request bodies and token claims.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Scan implements sql.Scanner for the users.role column.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		return fmt.Errorf("%w: NULL", ErrInvalidRole)
	}
	return fmt.Errorf("%w: unsupported type %T", ErrInvalidRole, src)
}

// Value implements driver.Valuer.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, string(r))
	}
	return string(r), nil
}
