package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraverse/internal/identity"
	"libraverse/internal/storage/memory"
)

func newService() identity.Service {
	issuer := identity.NewTokenIssuer("test-secret", time.Hour)
	return identity.NewService(memory.NewStore(), issuer)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	user, err := svc.Register(ctx, "Jane Austen", "jane@example.com", "longenough", identity.RoleAuthor)
	require.NoError(t, err)
	assert.Equal(t, "Jane Austen", user.FullName)
	assert.Equal(t, identity.RoleAuthor, user.Role)
	assert.Zero(t, user.Earnings)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEmpty(t, user.Salt)
	assert.NotEqual(t, "longenough", user.PasswordHash)
}

func TestRegisterDefaultsToReader(t *testing.T) {
	svc := newService()
	user, err := svc.Register(context.Background(), "Avid Reader", "reader@example.com", "longenough", "")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleReader, user.Role)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Register(ctx, "Jane Austen", "jane@example.com", "short", identity.RoleAuthor)
	assert.ErrorIs(t, err, identity.ErrInvalidUser)

	_, err = svc.Register(ctx, "Jo", "jo@example.com", "longenough", identity.RoleReader)
	assert.ErrorIs(t, err, identity.ErrInvalidUser)

	_, err = svc.Register(ctx, "Jane Austen", "not-an-email", "longenough", identity.RoleReader)
	assert.ErrorIs(t, err, identity.ErrInvalidUser)

	_, err = svc.Register(ctx, "Jane Austen", "jane@example.com", "longenough", "librarian")
	assert.ErrorIs(t, err, identity.ErrInvalidUser)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Register(ctx, "Jane Austen", "jane@example.com", "longenough", identity.RoleAuthor)
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Jane Impostor", "jane@example.com", "longenough", identity.RoleReader)
	assert.ErrorIs(t, err, identity.ErrDuplicateEmail)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	registered, err := svc.Register(ctx, "Jane Austen", "jane@example.com", "longenough", identity.RoleAuthor)
	require.NoError(t, err)

	user, token, err := svc.Authenticate(ctx, "jane@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.NotEmpty(t, token)

	issuer := identity.NewTokenIssuer("test-secret", time.Hour)
	principal, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, registered.ID, principal.UserID)
	assert.Equal(t, identity.RoleAuthor, principal.Role)
}

func TestAuthenticateBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Register(ctx, "Jane Austen", "jane@example.com", "longenough", identity.RoleAuthor)
	require.NoError(t, err)

	_, _, err = svc.Authenticate(ctx, "jane@example.com", "wrongpassword")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	// Unknown emails fail the same way, so login cannot be used to probe
	// for registered addresses.
	_, _, err = svc.Authenticate(ctx, "nobody@example.com", "longenough")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	registered, err := svc.Register(ctx, "Jane Austen", "jane@example.com", "longenough", identity.RoleAuthor)
	require.NoError(t, err)

	user, err := svc.GetUser(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, registered.Email, user.Email)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
