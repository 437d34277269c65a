package memory

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tidemark-ai/recollect/internal/db"
)

func TestTTLCacheBounded(t *testing.T) {
	c := NewTTLCache(3, time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("msg-%d", i), &db.Item{ID: fmt.Sprintf("item-%d", i)})
	}
	assert.Equal(t, 3, c.Len())

	// Newest entries survive
	it, ok := c.Get("msg-4")
	assert.True(t, ok)
	assert.Equal(t, "item-4", it.ID)
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache(10, time.Millisecond)
	c.Set("msg-1", &db.Item{ID: "item-1"})
	time.Sleep(10 * time.Millisecond)

	_, ok := c.Get("msg-1")
	assert.False(t, ok)
}

func TestTTLCacheEvict(t *testing.T) {
	c := NewTTLCache(10, time.Minute)
	c.Set("msg-1", &db.Item{ID: "item-1"})
	c.Evict("msg-1")

	_, ok := c.Get("msg-1")
	assert.False(t, ok)
}
