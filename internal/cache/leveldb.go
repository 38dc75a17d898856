package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const levelEntryPrefix = "e:"

// LevelCache is a shared on-disk cache backed by LevelDB. Several processes
// pointed at copies of the same directory see the same entries.
type LevelCache struct {
	db  *leveldb.DB
	ttl time.Duration
}

// NewLevelCache opens (or creates) a LevelDB cache at dir
func NewLevelCache(dir string, ttl time.Duration) (*LevelCache, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelCache{db: db, ttl: ttl}, nil
}

// Close closes the underlying database
func (c *LevelCache) Close() error {
	return c.db.Close()
}

// Get retrieves a value, dropping it if expired
func (c *LevelCache) Get(key string) ([]byte, bool) {
	raw, err := c.db.Get([]byte(levelEntryPrefix+key), nil)
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false
	}
	if time.Now().After(entry.ExpiresAt) {
		_ = c.db.Delete([]byte(levelEntryPrefix+key), nil)
		return nil, false
	}
	return entry.Data, true
}

// Set stores a value with the given TTL
func (c *LevelCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(cacheEntry{Data: value, ExpiresAt: time.Now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	if err := c.db.Put([]byte(levelEntryPrefix+key), data, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

// Delete removes a value
func (c *LevelCache) Delete(key string) error {
	err := c.db.Delete([]byte(levelEntryPrefix+key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil
	}
	return err
}

// Clear removes every entry in one batch
func (c *LevelCache) Clear() error {
	iter := c.db.NewIterator(util.BytesPrefix([]byte(levelEntryPrefix)), nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte(nil), iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iterate leveldb: %w", err)
	}
	return c.db.Write(batch, nil)
}
