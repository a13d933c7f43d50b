package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	c := newLRUCache(2, func(key string) { evicted = append(evicted, key) })

	c.Put("a", []float32{1})
	c.Put("b", []float32{2})

	// reading A makes B the oldest
	_, ok := c.Get("a")
	assert.True(t, ok)

	c.Put("c", []float32{3})

	assert.Equal(t, []string{"b"}, evicted)
	assert.True(t, c.Contains("a"))
	assert.True(t, c.Contains("c"))
	assert.False(t, c.Contains("b"))
	assert.Equal(t, 2, c.Len())
}

func TestLRUCache_PutExistingPromotes(t *testing.T) {
	c := newLRUCache(2, nil)

	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Put("a", []float32{9})
	c.Put("c", []float32{3})

	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))

	vec, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, []float32{9}, vec)
}

func TestLRUCache_GetMissing(t *testing.T) {
	c := newLRUCache(2, nil)
	_, ok := c.Get("nope")
	assert.False(t, ok)
}
