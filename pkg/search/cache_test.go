package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResultCache_RoundTrip(t *testing.T) {
	c := newResultCache(10, time.Minute)
	c.Put("k", []Result{{ID: "1", Score: 0.9}})

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "1", got[0].ID)
}

func TestResultCache_ReturnsCopies(t *testing.T) {
	c := newResultCache(10, time.Minute)
	c.Put("k", []Result{{ID: "1", Score: 0.9}})

	first, _ := c.Get("k")
	first[0].Score = 0

	second, _ := c.Get("k")
	assert.Equal(t, 0.9, second[0].Score)
}

func TestResultCache_TTLExpiry(t *testing.T) {
	c := newResultCache(10, 10*time.Millisecond)
	c.Put("k", []Result{{ID: "1"}})

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestResultCache_CapacityEviction(t *testing.T) {
	c := newResultCache(2, time.Minute)
	c.Put("a", nil)
	c.Put("b", nil)
	c.Put("c", nil)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestResultCache_EmptyResultSetsAreCacheable(t *testing.T) {
	c := newResultCache(10, time.Minute)
	c.Put("nothing", []Result{})

	got, ok := c.Get("nothing")
	assert.True(t, ok)
	assert.Empty(t, got)
}
