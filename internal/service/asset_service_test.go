package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dryengineer/internal/storage"
)

type failingStorage struct {
	storage.Service
	putErr error
}

func (s failingStorage) Put(context.Context, string, []byte) error {
	return s.putErr
}

func newLocalAssets(t *testing.T) *storage.LocalService {
	t.Helper()
	local, err := storage.NewLocalService(t.TempDir())
	require.NoError(t, err)
	return local
}

func TestAssetService_RoundTrip(t *testing.T) {
	f := newFixture(t)
	assets := NewAssetService(f.users, newLocalAssets(t))
	ctx := context.Background()
	user := f.register(t, "pic", "p")

	blob := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, 0x10}
	encoded := base64.StdEncoding.EncodeToString(blob)

	name, err := assets.Store(ctx, "avatar.png", encoded, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "avatar.png", name)

	got, err := assets.Retrieve(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, &EncodedAsset{Filename: "avatar.png", Data: encoded}, got)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "avatar.png", stored.Icon)
}

func TestAssetService_StoreWriteFailureLeavesUserUntouched(t *testing.T) {
	f := newFixture(t)
	assets := NewAssetService(f.users, failingStorage{putErr: errors.New("disk full")})
	ctx := context.Background()
	user := f.register(t, "w", "p")

	_, err := assets.Store(ctx, "a.png", base64.StdEncoding.EncodeToString([]byte("x")), user.ID)
	assert.ErrorIs(t, err, ErrAssetWrite)

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Icon)
}

func TestAssetService_StoreLinkFailureKeepsBlob(t *testing.T) {
	f := newFixture(t)
	local := newLocalAssets(t)
	assets := NewAssetService(f.users, local)
	ctx := context.Background()

	_, err := assets.Store(ctx, "orphan.png", base64.StdEncoding.EncodeToString([]byte("x")), 12345)
	assert.ErrorIs(t, err, ErrAssetLink)
	assert.ErrorIs(t, err, ErrNotFound)

	data, err := local.Get(ctx, "orphan.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

func TestAssetService_StoreRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	assets := NewAssetService(f.users, newLocalAssets(t))
	ctx := context.Background()
	user := f.register(t, "bad", "p")

	_, err := assets.Store(ctx, "a.png", "***not base64***", user.ID)
	assert.ErrorIs(t, err, ErrInvalidAsset)

	_, err = assets.Store(ctx, "..", base64.StdEncoding.EncodeToString([]byte("x")), user.ID)
	assert.ErrorIs(t, err, ErrInvalidAsset)
}

func TestAssetService_RetrieveFailures(t *testing.T) {
	f := newFixture(t)
	assets := NewAssetService(f.users, newLocalAssets(t))
	ctx := context.Background()

	_, err := assets.Retrieve(ctx, 777)
	assert.ErrorIs(t, err, ErrUserNotFound)

	user := f.register(t, "noicon", "p")
	_, err = assets.Retrieve(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoAsset)

	require.NoError(t, f.users.UpdateIcon(ctx, user.ID, "gone.png"))
	_, err = assets.Retrieve(ctx, user.ID)
	assert.ErrorIs(t, err, ErrAssetRead)
}

func TestDecodeAsset(t *testing.T) {
	want := []byte("hello image")
	std := base64.StdEncoding.EncodeToString(want)

	for _, in := range []string{
		std,
		"data:image/png;base64," + std,
		base64.RawStdEncoding.EncodeToString(want),
	} {
		got, err := DecodeAsset(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := DecodeAsset("data:text/plain,hello")
	assert.ErrorIs(t, err, ErrInvalidAsset)
	_, err = DecodeAsset("")
	assert.ErrorIs(t, err, ErrInvalidAsset)
}
