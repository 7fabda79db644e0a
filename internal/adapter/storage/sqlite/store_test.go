package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlevkov/clipdock/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Users(t *testing.T) {
	store := newTestStore(t)

	has, err := store.HasUser()
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.CreateUser("admin", "hash1"))

	has, err = store.HasUser()
	require.NoError(t, err)
	assert.True(t, has)

	user, err := store.GetUser("admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.Equal(t, "hash1", user.PasswordHash)

	byID, err := store.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, byID.Username)
}

func TestStore_GetUser_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetUser("ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_UpdatePassword(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("admin", "old"))

	user, err := store.GetUser("admin")
	require.NoError(t, err)

	require.NoError(t, store.UpdatePassword(user.ID, "new"))

	user, err = store.GetUser("admin")
	require.NoError(t, err)
	assert.Equal(t, "new", user.PasswordHash)
}

func TestStore_DuplicateUsername(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateUser("admin", "h"))
	assert.Error(t, store.CreateUser("admin", "h2"))
}
