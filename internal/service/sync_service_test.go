package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"dryengineer/internal/domain"
)

func newSync(f *fixture) Synchronizer {
	return NewSynchronizer(f.records, f.hash, domain.Users, domain.Recipes)
}

func decodeFields(t *testing.T, raw string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	require.NoError(t, dec.Decode(&fields))
	return fields
}

func TestSynchronizer_PatchUpdatesExactlyNamedFields(t *testing.T) {
	f := newFixture(t)
	sync := newSync(f)
	ctx := context.Background()

	id, err := sync.Create(ctx, domain.Recipes, decodeFields(t, `{
		"name": "wheat", "tempgrain": 40, "tempgrainmax": 45, "tempgraincritical": 50,
		"tempagent": 90, "tempagentcritical": 110, "maxfanasprate": 80, "maxfanrecrate": 60,
		"timeunload": 30, "timeunloaddelay": 5, "weight": 1000
	}`))
	require.NoError(t, err)

	before, err := f.records.Get(ctx, domain.Recipes, id)
	require.NoError(t, err)

	require.NoError(t, sync.Patch(ctx, domain.Recipes, id, decodeFields(t, `{"tempgrain": "42", "name": "wheat v2"}`)))

	after, err := f.records.Get(ctx, domain.Recipes, id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), after["tempgrain"])
	assert.Equal(t, "wheat v2", after["name"])
	for k, v := range before {
		if k == "tempgrain" || k == "name" {
			continue
		}
		assert.Equal(t, v, after[k], "column %s changed", k)
	}
}

func TestSynchronizer_PatchRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t)
	sync := newSync(f)
	ctx := context.Background()

	id, err := sync.Create(ctx, domain.Recipes, map[string]any{"name": "barley"})
	require.NoError(t, err)

	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{}), ErrEmptyPatch)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, nil), ErrEmptyPatch)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{"name; DROP TABLE recipe": "x"}), ErrUnknownField)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{"idrecipe": 7}), ErrReadOnlyField)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{"weight": 1.5}), ErrInvalidValue)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{"weight": true}), ErrInvalidValue)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{"weight": 1e19}), ErrInvalidValue)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{"weight": -1e19}), ErrInvalidValue)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{"weight": json.Number("1e19")}), ErrInvalidValue)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, id, map[string]any{"weight": json.Number("9223372036854775808")}), ErrInvalidValue)
	assert.ErrorIs(t, sync.Patch(ctx, domain.Recipes, 9999, map[string]any{"weight": 1}), ErrNotFound)

	rec, err := f.records.Get(ctx, domain.Recipes, id)
	require.NoError(t, err)
	assert.Equal(t, "barley", rec["name"])
	assert.Nil(t, rec["weight"])
}

func TestSynchronizer_UserPatchHashesPasswordAndListStripsIt(t *testing.T) {
	f := newFixture(t)
	sync := newSync(f)
	ctx := context.Background()
	user := f.register(t, "ivan", "old")

	assert.ErrorIs(t, sync.Patch(ctx, domain.Users, user.ID, map[string]any{"dateCreate": "2020-01-01T00:00:00Z"}), ErrReadOnlyField)
	require.NoError(t, sync.Patch(ctx, domain.Users, user.ID, map[string]any{"password": "new", "accessLevel": json.Number("3")}))

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new")))
	assert.Equal(t, 3, stored.AccessLevel)
	assert.Equal(t, "ivan", stored.Login)

	list, err := sync.List(ctx, domain.Users)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "password")
	assert.Equal(t, "ivan", list[0]["login"])
	assert.Equal(t, int64(3), list[0]["accessLevel"])
}

func TestSynchronizer_UserPatchDuplicateLogin(t *testing.T) {
	f := newFixture(t)
	sync := newSync(f)
	f.register(t, "first", "p")
	second := f.register(t, "second", "p")

	err := sync.Patch(context.Background(), domain.Users, second.ID, map[string]any{"login": "first"})
	assert.ErrorIs(t, err, ErrDuplicateLogin)
}

func TestSynchronizer_CreateUserStampsDateCreate(t *testing.T) {
	f := newFixture(t)
	sync := newSync(f)
	ctx := context.Background()

	_, err := sync.Create(ctx, domain.Users, map[string]any{"login": "x"})
	assert.ErrorIs(t, err, ErrInvalidValue)

	id, err := sync.Create(ctx, domain.Users, map[string]any{"login": "x", "password": "p", "email": "x@example.com"})
	require.NoError(t, err)

	stored, err := f.users.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, stored.DateCreate.IsZero())
}

func TestSynchronizer_DeleteRemovesOnlyTarget(t *testing.T) {
	f := newFixture(t)
	sync := newSync(f)
	ctx := context.Background()

	var ids []int64
	for _, name := range []string{"r1", "r2", "r3"} {
		id, err := sync.Create(ctx, domain.Recipes, map[string]any{"name": name})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.NoError(t, sync.Delete(ctx, domain.Recipes, ids[0]))
	assert.ErrorIs(t, sync.Delete(ctx, domain.Recipes, ids[0]), ErrNotFound)

	list, err := sync.List(ctx, domain.Recipes)
	require.NoError(t, err)
	var names []any
	for _, rec := range list {
		names = append(names, rec["name"])
	}
	assert.Equal(t, []any{"r2", "r3"}, names)
}

func TestSynchronizer_UnknownCollection(t *testing.T) {
	f := newFixture(t)
	sync := newSync(f)

	_, err := sync.List(context.Background(), domain.Messages)
	assert.ErrorIs(t, err, ErrUnknownCollection)
}

func TestSynchronizer_GetReturnsStoredRowWithoutSecrets(t *testing.T) {
	f := newFixture(t)
	sync := newSync(f)
	ctx := context.Background()
	user := f.register(t, "olena", "pw")

	rec, err := sync.Get(ctx, domain.Users, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, rec["id"])
	assert.Equal(t, "olena", rec["login"])
	assert.NotContains(t, rec, "password")

	_, err = sync.Get(ctx, domain.Recipes, 404)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = sync.Get(ctx, domain.Messages, 1)
	assert.ErrorIs(t, err, ErrUnknownCollection)
}
