package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dryengineer/internal/domain"
)

func TestAuthService_Login(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthService(f.users, f.hash)
	ctx := context.Background()
	registered := f.register(t, "operator", "s3cret")

	_, err := auth.Login(ctx, "nouser", "anything")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = auth.Login(ctx, "operator", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	user, err := auth.Login(ctx, "operator", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, user.ID)
	assert.Equal(t, "operator", user.Login)
	assert.Equal(t, "operator@example.com", user.Email)
	assert.Empty(t, user.PasswordHash)
}

func TestAuthService_LoginMatchesTrimmedRegistration(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthService(f.users, f.hash)
	ctx := context.Background()

	registered, err := auth.Register(ctx, domain.Registration{Login: " bob ", Password: "pw", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "bob", registered.Login)

	for _, login := range []string{" bob ", "bob", "bob\t"} {
		user, err := auth.Login(ctx, login, "pw")
		require.NoError(t, err, "login %q", login)
		assert.Equal(t, registered.ID, user.ID)
	}

	_, err = auth.Register(ctx, domain.Registration{Login: "bob  ", Password: "pw", Email: "b2@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateLogin)
}

func TestAuthService_RegisterStoresVerifierAndDefaults(t *testing.T) {
	f := newFixture(t)
	user := f.register(t, "newbie", "pa55")

	assert.Positive(t, user.ID)
	assert.Equal(t, 0, user.AccessLevel)
	assert.Empty(t, user.Icon)
	assert.False(t, user.DateCreate.IsZero())
	assert.Empty(t, user.PasswordHash)

	stored, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "pa55", stored.PasswordHash)
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestAuthService_RegisterDuplicateLogin(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthService(f.users, f.hash)
	f.register(t, "taken", "x")

	_, err := auth.Register(context.Background(), domain.Registration{Login: "taken", Password: "y", Email: "e@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateLogin)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthService(f.users, f.hash)
	ctx := context.Background()

	for _, reg := range []domain.Registration{
		{Password: "p", Email: "e"},
		{Login: "l", Email: "e"},
		{Login: "l", Password: "p"},
	} {
		_, err := auth.Register(ctx, reg)
		assert.ErrorIs(t, err, ErrInvalidValue)
	}
}

// Concurrent registrations with one login: the unique index lets exactly one through.
func TestAuthService_ConcurrentRegisterSameLogin(t *testing.T) {
	f := newFixture(t)
	auth := NewAuthService(f.users, f.hash)
	ctx := context.Background()

	const n = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := auth.Register(ctx, domain.Registration{Login: "race", Password: "p", Email: "race@example.com"})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicateLogin)
	}
	assert.Equal(t, 1, ok)
}
