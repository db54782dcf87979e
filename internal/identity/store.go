package identity

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the persistence contract for users.
type Store interface {
	InsertUser(ctx context.Context, user *User) error
	UserByID(ctx context.Context, id uuid.UUID) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
}
