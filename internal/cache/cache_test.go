package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/deckcheck/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	a := Key(NamespaceReview, "openai", "gpt-4o-mini", "prompt")
	b := Key(NamespaceReview, "openai", "gpt-4o-mini", "prompt")
	c := Key(NamespaceReview, "openai", "gpt-4o-miniprompt")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "deckcheck:v1:review:"))
	assert.NotEqual(t, Key(NamespaceDeck, "x"), Key(NamespaceReview, "x"))
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	value := []byte("hello")
	require.NoError(t, c.Set("k", value, 0))
	value[0] = 'j'

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete("k"))
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	require.NoError(t, c.Set("k", []byte("v"), time.Millisecond))

	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestDiskCache(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	key := Key(NamespaceDeck, "https://example.com/deck.pptx")

	require.NoError(t, c.Set(key, []byte("deck"), 0))

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("deck"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), ":")

	require.NoError(t, c.Delete(key))
	require.NoError(t, c.Delete(key))
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestMemoryCache_MaxEntry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute).WithMaxEntry(4)

	require.NoError(t, c.Set("small", []byte("tiny"), 0))
	require.NoError(t, c.Set("deck", []byte("too large"), 0))

	_, ok := c.Get("small")
	assert.True(t, ok)
	_, ok = c.Get("deck")
	assert.False(t, ok)

	// an oversized rewrite drops the stale value
	require.NoError(t, c.Set("small", []byte("grown up"), 0))
	_, ok = c.Get("small")
	assert.False(t, ok)
}

func TestDiskCache_StoresRawBytes(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)
	deck := []byte("PK\x03\x04 slide bytes")

	require.NoError(t, c.Set("k", deck, 0))

	raw, err := os.ReadFile(filepath.Join(dir, fileName("k")))
	require.NoError(t, err)
	assert.Equal(t, deck, raw)

	info, err := os.Stat(filepath.Join(dir, fileName("k")))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), info.ModTime(), time.Minute)
}

func TestDiskCache_ExpiredAndPrune(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	require.NoError(t, c.Set("old", []byte("v"), -time.Second))
	require.NoError(t, c.Set("stale", []byte("v"), -time.Second))
	require.NoError(t, c.Set("fresh", []byte("v"), 0))

	_, ok := c.Get("old")
	assert.False(t, ok)

	removed, err := c.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok = c.Get("fresh")
	assert.True(t, ok)

	removed, err = NewDiskCache(filepath.Join(dir, "missing"), time.Hour).Prune()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	layered := func() *LayeredCache {
		return NewLayeredCache(NewMemoryCache(time.Minute, time.Minute), NewDiskCache(dir, time.Hour))
	}

	require.NoError(t, layered().Set("k", []byte("v"), 0))

	// a fresh process only has the disk layer
	second := layered()
	got, ok := second.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, os.RemoveAll(dir))
	got, ok = second.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, second.Clear())
	_, ok = second.Get("k")
	assert.False(t, ok)
}

func TestLayeredCache_LargeEntriesSkipMemory(t *testing.T) {
	dir := t.TempDir()
	memory := NewMemoryCache(time.Minute, time.Minute).WithMaxEntry(2)
	c := NewLayeredCache(memory, NewDiskCache(dir, time.Hour))

	require.NoError(t, c.Set("deck", []byte("large deck"), 0))
	assert.Zero(t, memory.Len())

	got, ok := c.Get("deck")
	require.True(t, ok)
	assert.Equal(t, []byte("large deck"), got)
	assert.Zero(t, memory.Len())
}

func TestNew(t *testing.T) {
	assert.IsType(t, Nop{}, New(model.CacheConfig{Enabled: false}))
	assert.IsType(t, &MemoryCache{}, New(model.CacheConfig{Enabled: true, MemoryTTL: time.Minute}))
	assert.IsType(t, &LayeredCache{}, New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}))
	assert.Implements(t, (*Pruner)(nil), New(model.CacheConfig{Enabled: true, Dir: t.TempDir()}))

	var n Nop
	require.NoError(t, n.Set("k", []byte("v"), 0))
	_, ok := n.Get("k")
	assert.False(t, ok)
}
