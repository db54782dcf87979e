package identity

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail indicates the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited indicates too many registration or login attempts.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInvalidUser indicates the user fails validation.
	ErrInvalidUser = errors.New("invalid user")
)

// Roles a user can hold. Authors publish books and accumulate earnings;
// readers borrow and buy them.
const (
	RoleReader = "reader"
	RoleAuthor = "author"
)

// User represents a registered reader or author. Earnings only ever grows
// (there is no refund flow) and is meaningful for authors only.
type User struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"fullname"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Earnings  float64   `json:"earnings"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PasswordHash string `json:"-"`
	Salt         string `json:"-"`
}

// Validate checks the registration fields.
func (u *User) Validate() error {
	if len(strings.TrimSpace(u.FullName)) < 5 {
		return errors.Join(ErrInvalidUser, errors.New("fullname must contain at least 5 characters"))
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return errors.Join(ErrInvalidUser, errors.New("invalid email address"))
	}
	if u.Role != RoleReader && u.Role != RoleAuthor {
		return errors.Join(ErrInvalidUser, errors.New("role must be reader or author"))
	}
	return nil
}
