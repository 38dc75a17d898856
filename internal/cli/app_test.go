package cli

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/wikimirror/internal/cache"
	"github.com/ppiankov/wikimirror/internal/model"
)

func testConfig(t *testing.T) model.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := model.DefaultConfig()
	cfg.Registry.Path = filepath.Join(dir, "wikimirror.db")
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	return cfg
}

func TestCacheBackend(t *testing.T) {
	tests := []struct {
		backend string
		want    interface{}
	}{
		{"memory", &cache.MemoryCache{}},
		{"disk", &cache.DiskCache{}},
		{"leveldb", &cache.LevelCache{}},
		{"layered", &cache.LayeredCache{}},
		{"", &cache.LayeredCache{}},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Cache.Backend = tt.backend

			a, err := newApp(cfg)
			require.NoError(t, err)
			defer func() { assert.NoError(t, a.Close()) }()

			store, err := a.cacheBackend()
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)

			require.NoError(t, store.Set("k", []byte("v"), time.Minute))
			got, ok := store.Get("k")
			assert.True(t, ok)
			assert.Equal(t, []byte("v"), got)
		})
	}
}

func TestCacheBackend_Unknown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "redis"

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.mirror()
	assert.ErrorContains(t, err, `unknown cache backend "redis"`)
}

func TestApp_MirrorIsBuiltOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Backend = "memory"

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	first, err := a.mirror()
	require.NoError(t, err)
	second, err := a.mirror()
	require.NoError(t, err)
	assert.Same(t, first, second)

	forks, err := a.forks()
	require.NoError(t, err)
	assert.NotNil(t, forks)
	assert.NotNil(t, a.searcher())
}

func TestNewApp_RegistryPathIsDirectory(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.Path = t.TempDir()

	_, err := newApp(cfg)
	assert.Error(t, err)
}

func TestNewApp_HostRates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Remote.HostRates = []model.HostRate{{Host: "slow.example", RequestsPerSecond: 0, Burst: 1}}

	a, err := newApp(cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.limiter.Allow("https://slow.example/w/api.php"))
	assert.False(t, a.limiter.Allow("https://slow.example/w/api.php"))

	assert.True(t, a.limiter.Allow("https://fast.example/w/api.php"))
	assert.True(t, a.limiter.Allow("https://fast.example/w/api.php"))
}
