// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import "errors"

// ErrUserNotFound is returned when no user matches the lookup.
// Handlers translate it into 404 on admin routes and 401 on auth routes.
var ErrUserNotFound = errors.New("user not found")

// ErrTaskNotFound is returned when no task matches the lookup.
var ErrTaskNotFound = errors.New("task not found")

// ErrEmailExists is returned when the unique index on users.email rejects
// an insert.
var ErrEmailExists = errors.New("email already exists")
