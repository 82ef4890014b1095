package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
	"dryengineer/internal/repository/sqlite"
)

type fixture struct {
	db       *sql.DB
	users    repository.UserRepository
	messages repository.MessageRepository
	records  repository.RecordStore
	hash     PasswordHasher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	f := &fixture{
		db:       db,
		users:    sqlite.NewUserRepository(db),
		messages: sqlite.NewMessageRepository(db),
		records:  sqlite.NewRecordStore(db, domain.Users, domain.Recipes),
		hash:     BcryptHasher(bcrypt.MinCost),
	}
	require.NoError(t, f.users.Init(ctx))
	require.NoError(t, f.messages.Init(ctx))
	require.NoError(t, f.records.Init(ctx))
	return f
}

func (f *fixture) register(t *testing.T, login, password string) *domain.User {
	t.Helper()
	user, err := NewAuthService(f.users, f.hash).Register(context.Background(), domain.Registration{
		Login:    login,
		Password: password,
		Name:     "Name",
		Surname:  "Surname",
		Email:    login + "@example.com",
	})
	require.NoError(t, err)
	return user
}
