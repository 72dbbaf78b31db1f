package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an entry in the member directory. Registration and verification
// live outside this service; the directory only answers lookups.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Email is unique and is accepted as a payer identity.
	Email string

	DisplayName string

	CreatedAt int64
	UpdatedAt int64
}

// NewUser creates a directory entry with a fresh ID.
func NewUser(email, displayName string) *User {
	now := time.Now().Unix()
	return &User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
