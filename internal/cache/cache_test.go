package cache

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeKey(t *testing.T) {
	key := MakeKey(3, "mirror", "remote-info", HashKey("Main Page"))
	assert.True(t, strings.HasPrefix(key, "wikimirror:v3:mirror:remote-info:"))
	assert.Len(t, strings.TrimPrefix(key, "wikimirror:v3:mirror:remote-info:"), 64)

	assert.NotEqual(t, key, MakeKey(4, "mirror", "remote-info", HashKey("Main Page")))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	require.NoError(t, c.Set("a", []byte("1"), 0))
	val, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, []byte("1"), val)

	require.NoError(t, c.Set("short", []byte("x"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok = c.Get("short")
	assert.False(t, ok)

	require.NoError(t, c.Delete("a"))
	_, ok = c.Get("a")
	assert.False(t, ok)

	require.NoError(t, c.Set("b", []byte("2"), 0))
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestDiskCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := NewDiskCache(dir, time.Hour)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Set("wikimirror:v3:mirror:key", []byte(`{"x":1}`), 0))
	val, ok := c.Get("wikimirror:v3:mirror:key")
	require.True(t, ok)
	assert.JSONEq(t, `{"x":1}`, string(val))

	require.NoError(t, c.Set("expiring", []byte("x"), -time.Second))
	_, ok = c.Get("expiring")
	assert.False(t, ok)

	require.NoError(t, c.Delete("wikimirror:v3:mirror:key"))
	require.NoError(t, c.Delete("wikimirror:v3:mirror:key"), "deleting twice is not an error")
	require.NoError(t, c.Clear())
}

func TestLevelCache(t *testing.T) {
	c, err := NewLevelCache(t.TempDir(), time.Hour)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("k1", []byte("v1"), 0))
	require.NoError(t, c.Set("k2", []byte("v2"), 0))

	val, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), val)

	require.NoError(t, c.Set("old", []byte("v"), -time.Second))
	_, ok = c.Get("old")
	assert.False(t, ok)

	require.NoError(t, c.Delete("k1"))
	require.NoError(t, c.Delete("k1"))
	_, ok = c.Get("k1")
	assert.False(t, ok)

	require.NoError(t, c.Clear())
	_, ok = c.Get("k2")
	assert.False(t, ok)
}

func TestLayeredCache_PromotesFarHits(t *testing.T) {
	near := NewMemoryCache(time.Minute, time.Minute)
	far := NewMemoryCache(time.Hour, time.Minute)
	c := NewTieredCache(near, far, time.Minute)

	require.NoError(t, far.Set("k", []byte("v"), 0))
	_, ok := near.Get("k")
	require.False(t, ok)

	val, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)

	_, ok = near.Get("k")
	assert.True(t, ok, "far hit should be promoted")

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}
