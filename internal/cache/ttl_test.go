package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpiresLazily(t *testing.T) {
	c := NewTTLCache[string, int]()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	v, ok = c.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestTTLCacheDeleteFunc(t *testing.T) {
	c := NewTTLCache[string, int]()
	c.Set("x1", 1, 0)
	c.Set("x2", 2, 0)
	c.Set("y1", 3, 0)

	removed := c.DeleteFunc(func(k string) bool { return k[0] == 'x' })
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	c.Delete("y1")
	assert.Equal(t, 0, c.Len())
}

func TestUpsertKeepsLiveEntryAndReplacesExpired(t *testing.T) {
	c := NewTTLCache[string, int]()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	create := func(current int, found bool) int {
		if found {
			return current
		}
		return current + 7
	}

	assert.Equal(t, 7, c.Upsert("k", time.Second, create))
	assert.Equal(t, 7, c.Upsert("k", time.Second, func(current int, found bool) int {
		assert.True(t, found)
		return current
	}))

	now = now.Add(2 * time.Second)
	assert.Equal(t, 7, c.Upsert("k", time.Second, func(current int, found bool) int {
		assert.False(t, found)
		assert.Zero(t, current)
		return 7
	}))
}
