package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "advisor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	kv := NewKVStore(openTestDB(t))

	_, ok, err := kv.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, kv.Set(ctx, "auth_token", "demo_token"))
	v, ok, err := kv.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "demo_token", v)

	require.NoError(t, kv.Set(ctx, "auth_token", "other"))
	v, _, err = kv.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.Equal(t, "other", v)

	require.NoError(t, kv.Delete(ctx, "auth_token"))
	_, ok, err = kv.Get(ctx, "auth_token")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, kv.Delete(ctx, "missing"))
	assert.NoError(t, kv.Ping(ctx))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "advisor.db")

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewKVStore(db).Set(context.Background(), "k", "v"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	has, err := columnExists(db.DB, "local_storage", "updated_at")
	require.NoError(t, err)
	assert.True(t, has)

	v, ok, err := NewKVStore(db).Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
