package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Cache defines the interface for a shared byte store with per-entry expiry
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// MakeKey builds a versioned cache key. Bumping version orphans every entry
// written under the previous one.
func MakeKey(version int, parts ...string) string {
	return "wikimirror:v" + strconv.Itoa(version) + ":" + strings.Join(parts, ":")
}

// HashKey returns the hex sha256 of s, for use as a key component
func HashKey(s string) string {
	hash := sha256.Sum256([]byte(s))
	return hex.EncodeToString(hash[:])
}
