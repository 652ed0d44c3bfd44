package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/ppiankov/deckcheck/internal/model"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "deckcheck:v1:"

// Namespaces keep downloads and model responses apart
const (
	NamespaceDeck   = "deck"
	NamespaceReview = "review"
)

// Key generates a cache key from a namespace and the parts that identify the entry
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return keyPrefix + namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// New builds the configured cache: memory in front of disk, memory only
// when no directory is set, or a no-op cache when disabled
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return Nop{}
	}
	memory := NewMemoryCache(cfg.MemoryTTL, 10*time.Minute).WithMaxEntry(cfg.MemoryMaxEntryBytes)
	if cfg.Dir == "" {
		return memory
	}
	return NewLayeredCache(memory, NewDiskCache(cfg.Dir, cfg.DiskTTL))
}

// Pruner is implemented by caches that can drop expired entries eagerly
type Pruner interface {
	Prune() (int, error)
}

// Nop is a cache that stores nothing
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }

// fileName maps a key onto a portable file name
func fileName(key string) string {
	return strings.NewReplacer(":", "_", "/", "_", `\`, "_").Replace(key) + ".cache"
}
