package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// service implements the Service interface.
type service struct {
	store       Store
	issuer      *TokenIssuer
	rateLimiter *rate.Limiter
}

// NewService creates a new identity service instance.
func NewService(store Store, issuer *TokenIssuer) Service {
	return &service{
		store:       store,
		issuer:      issuer,
		rateLimiter: rate.NewLimiter(rate.Every(time.Second), 20),
	}
}

// Register creates a new reader or author account.
func (s *service) Register(ctx context.Context, fullname, email, password, role string) (*User, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}
	if role == "" {
		role = RoleReader
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must contain at least 8 characters", ErrInvalidUser)
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &User{
		ID:           uuid.New(),
		FullName:     fullname,
		Email:        email,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
		PasswordHash: passwordHash,
		Salt:         salt,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.InsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// Authenticate verifies the credentials and returns the user with a
// signed access token.
func (s *service) Authenticate(ctx context.Context, email, password string) (*User, string, error) {
	if !s.rateLimiter.Allow() {
		return nil, "", ErrRateLimited
	}

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		// Do not reveal whether the email exists.
		return nil, "", ErrInvalidCredentials
	}

	ok, err := verifyPassword(password, user.Salt, user.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// GetUser retrieves a user by their ID.
func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.store.UserByID(ctx, id)
}

// ListUsers returns all registered users.
func (s *service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.ListUsers(ctx)
}
