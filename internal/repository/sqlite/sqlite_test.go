package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dryengineer/internal/domain"
	"dryengineer/internal/repository"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "db", "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newStore(t *testing.T, db *sql.DB) repository.RecordStore {
	t.Helper()
	store := NewRecordStore(db, domain.Users, domain.Recipes)
	require.NoError(t, store.Init(context.Background()))
	return store
}

func TestRecordStore_InsertListGet(t *testing.T) {
	store := newStore(t, setupDB(t))
	ctx := context.Background()

	id, err := store.Insert(ctx, domain.Recipes, domain.Record{"name": "wheat", "tempgrain": int64(40), "weight": int64(1200)})
	require.NoError(t, err)
	assert.Positive(t, id)

	rec, err := store.Get(ctx, domain.Recipes, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec["idrecipe"])
	assert.Equal(t, "wheat", rec["name"])
	assert.Equal(t, int64(40), rec["tempgrain"])
	assert.Equal(t, int64(1200), rec["weight"])
	assert.Nil(t, rec["tempagent"])

	list, err := store.List(ctx, domain.Recipes)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec, list[0])
}

func TestRecordStore_UpdateTouchesOnlyNamedColumns(t *testing.T) {
	store := newStore(t, setupDB(t))
	ctx := context.Background()

	id, err := store.Insert(ctx, domain.Recipes, domain.Record{
		"name": "corn", "tempgrain": int64(35), "tempgrainmax": int64(45), "timeunload": int64(20),
	})
	require.NoError(t, err)
	before, err := store.Get(ctx, domain.Recipes, id)
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, domain.Recipes, id, domain.Record{"tempgrainmax": int64(50)}))

	after, err := store.Get(ctx, domain.Recipes, id)
	require.NoError(t, err)
	assert.Equal(t, int64(50), after["tempgrainmax"])
	for k, v := range before {
		if k == "tempgrainmax" {
			continue
		}
		assert.Equal(t, v, after[k], "column %s changed", k)
	}
}

func TestRecordStore_UpdateAndDeleteMissingRow(t *testing.T) {
	store := newStore(t, setupDB(t))
	ctx := context.Background()

	err := store.Update(ctx, domain.Recipes, 404, domain.Record{"name": "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	err = store.Delete(ctx, domain.Recipes, 404)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = store.Get(ctx, domain.Recipes, 404)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecordStore_RejectsColumnsOutsideSchema(t *testing.T) {
	store := newStore(t, setupDB(t))
	ctx := context.Background()

	_, err := store.Insert(ctx, domain.Recipes, domain.Record{"name = 'x'; --": "boom"})
	require.Error(t, err)

	id, err := store.Insert(ctx, domain.Recipes, domain.Record{"name": "oats"})
	require.NoError(t, err)
	err = store.Update(ctx, domain.Recipes, id, domain.Record{"idrecipe": int64(9)})
	require.Error(t, err)
}

func TestRecordStore_DeleteRemovesExactlyOneRow(t *testing.T) {
	store := newStore(t, setupDB(t))
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"a", "b", "c"} {
		id, err := store.Insert(ctx, domain.Recipes, domain.Record{"name": name})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, store.Delete(ctx, domain.Recipes, ids[1]))

	list, err := store.List(ctx, domain.Recipes)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[0], list[0]["idrecipe"])
	assert.Equal(t, ids[2], list[1]["idrecipe"])
}

func TestRecordStore_UniqueLogin(t *testing.T) {
	store := newStore(t, setupDB(t))
	ctx := context.Background()

	fields := domain.Record{"login": "op", "password": "digest", "email": "op@example.com"}
	_, err := store.Insert(ctx, domain.Users, fields)
	require.NoError(t, err)
	_, err = store.Insert(ctx, domain.Users, fields)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestInit_AddsMissingColumnsToLegacyTable(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	_, err := db.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		login TEXT NOT NULL,
		password TEXT NOT NULL,
		name TEXT NOT NULL,
		surname TEXT NOT NULL,
		accessLevel INTEGER,
		email TEXT NOT NULL,
		dateCreate DATETIME
	)`)
	require.NoError(t, err)

	repo := NewUserRepository(db)
	require.NoError(t, repo.Init(ctx))

	user := &domain.User{Login: "legacy", PasswordHash: "h", Name: "n", Surname: "s", Email: "e"}
	_, err = repo.Create(ctx, user)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateIcon(ctx, user.ID, "face.png"))

	got, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "face.png", got.Icon)
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	require.NoError(t, repo.Init(ctx))

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	user := &domain.User{
		Login:        "olena",
		PasswordHash: "$2a$10$digest",
		Name:         "Olena",
		Surname:      "Koval",
		Email:        "olena@example.com",
		AccessLevel:  2,
		DateCreate:   created,
	}
	id, err := repo.Create(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)

	byLogin, err := repo.GetByLogin(ctx, "olena")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$digest", byLogin.PasswordHash)
	assert.Equal(t, 2, byLogin.AccessLevel)
	assert.True(t, created.Equal(byLogin.DateCreate))

	byID, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, byLogin, byID)

	_, err = repo.GetByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	_, err = repo.Create(ctx, &domain.User{Login: "olena", PasswordHash: "x", Email: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	assert.ErrorIs(t, repo.UpdateIcon(ctx, 999, "x.png"), repository.ErrNotFound)
}

func TestUserRepository_ConcurrentCreateSameLogin(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	require.NoError(t, repo.Init(ctx))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		dups int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Create(ctx, &domain.User{Login: "same", PasswordHash: "h", Email: "e"})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				oks++
			} else if assert.ErrorIs(t, err, repository.ErrDuplicate) {
				dups++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, oks)
	assert.Equal(t, 7, dups)
}

func TestMessageRepository_CreateList(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewMessageRepository(db)
	require.NoError(t, repo.Init(ctx))

	msg := &domain.Message{Text: "xyz123", User: "guest"}
	_, err := repo.Create(ctx, msg)
	require.NoError(t, err)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, *msg, list[0])
}
