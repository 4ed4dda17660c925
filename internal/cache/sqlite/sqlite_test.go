package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) (*Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestCache_GetMissing(t *testing.T) {
	c, _ := openTestCache(t)

	_, ok, err := c.Get(context.Background(), "user")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_SetOverwrites(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "access_token", "first"))
	require.NoError(t, c.Set(ctx, "access_token", "second"))

	v, ok, err := c.Get(ctx, "access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestCache_RemoveMany(t *testing.T) {
	c, _ := openTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user", `{"id":"u1"}`))
	require.NoError(t, c.Set(ctx, "refresh_token", "rt"))
	require.NoError(t, c.Set(ctx, "theme", "dark"))

	require.NoError(t, c.RemoveMany(ctx, "user", "access_token", "refresh_token"))

	_, ok, err := c.Get(ctx, "user")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := c.Get(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dark", v)

	assert.NoError(t, c.RemoveMany(ctx))
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	c, path := openTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "user", `{"id":"u1"}`))
	require.NoError(t, c.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := reopened.Get(ctx, "user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":"u1"}`, v)
}
