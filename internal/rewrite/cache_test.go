package rewrite

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisLookup, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLookup(client, time.Hour, time.Minute), mr
}

func TestRedisLookup_SetGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "2026/02/photo.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "2026/02/photo.jpg", "off"))
	id, ok, err := c.Get(ctx, "2026/02/photo.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "off", id)
	assert.Equal(t, time.Hour, mr.TTL("offloader:file:2026/02/photo.jpg"))
}

func TestRedisLookup_MissUsesShortTTL(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "2026/02/nope.jpg", ""))
	id, ok, err := c.Get(ctx, "2026/02/nope.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, id)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "2026/02/nope.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisLookup_Forget(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a.jpg", "id"))
	require.NoError(t, c.Forget(ctx, "a.jpg"))
	_, ok, err := c.Get(ctx, "a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRewriter_ContentUsesLookup(t *testing.T) {
	c, _ := setupTestRedis(t)
	f := newFinder()
	rw := newRewriter(f, c)
	html := `<img src="` + uploadBase + `/2026/02/photo.jpg"><img src="` + uploadBase + `/2026/02/nope.jpg">`

	first := rw.Content(context.Background(), html)
	second := rw.Content(context.Background(), html)

	assert.Equal(t, first, second)
	assert.Contains(t, first, storageBase+"/2026/02/photo.jpg")
	assert.Equal(t, 2, f.fileCalls, "second pass is served from the cache")
}

func TestRewriter_StaleLookupEntry(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "2026/02/photo.jpg", "deleted-id"))

	f := newFinder()
	rw := newRewriter(f, c)
	got := rw.Content(ctx, `<img src="`+uploadBase+`/2026/02/photo.jpg">`)

	assert.Contains(t, got, storageBase+"/2026/02/photo.jpg")
	id, ok, err := c.Get(ctx, "2026/02/photo.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "off", id)
}
