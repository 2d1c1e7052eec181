// Package models declares the user entity, the request and response
// payloads of the HTTP API and the sentinel errors shared between
// the storage implementations and the router.
package models

import (
	"errors"
	"time"
)

// User is the stored record. Password is kept verbatim and must never
// leave the storage layer through a response payload.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserRequest is the POST /users payload. All fields are required.
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Surname  string `json:"surname" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest is the PUT /users/{id} payload. A nil field means
// "absent from the payload" and is excluded from the update set.
type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Surname  *string `json:"surname"`
	Password *string `json:"password"`
}

// IsEmpty reports whether no field is present in the payload.
func (r UpdateUserRequest) IsEmpty() bool {
	return r.Name == nil && r.Surname == nil && r.Password == nil
}

// UserPatch carries the update set to the storage layer.
// Only non-nil fields are applied.
type UserPatch struct {
	Name     *string
	Surname  *string
	Password *string
}

// UserResponse is the client-facing shape of a user record.
// There is deliberately no password field.
type UserResponse struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Surname   string    `json:"surname"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUserResponse maps a stored record to its response shape.
func NewUserResponse(usr *User) UserResponse {
	return UserResponse{
		ID:        usr.ID,
		Name:      usr.Name,
		Surname:   usr.Surname,
		CreatedAt: usr.CreatedAt,
		UpdatedAt: usr.UpdatedAt,
	}
}

// ListUsersDefaultLimit is applied when the `limit` query parameter is omitted.
const ListUsersDefaultLimit = 100

// ErrUserNotFound is returned when the requested user id does not exist.
var ErrUserNotFound = errors.New("user not found")
