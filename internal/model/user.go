package model

import "time"

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// define separate response types that never include the hash.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address (case-sensitive).
//  Username     – optional display name, nil when unset.
//  PasswordHash – bcrypt hashed password.
//  Role         – user or admin.
//  IsActive     – whether the account may log in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Username     *string   // users.username (nullable)
	PasswordHash string    // users.hashed_password
	Role         Role      // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
