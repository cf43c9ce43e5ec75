package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := New(true, time.Minute, time.Minute)

	c.Set(ctx, GenerateKey(PrefixUser, "u1"), "admin", 0)
	v, ok := c.Get(ctx, "user:v1:u1")
	assert.True(t, ok)
	assert.Equal(t, "admin", v)

	c.Set(ctx, GenerateKey(PrefixUser, "u2"), "standard", 0)
	c.DeleteByPrefix(ctx, PrefixUser)
	_, ok = c.Get(ctx, "user:v1:u2")
	assert.False(t, ok)
}

func TestAddIsSetIfAbsent(t *testing.T) {
	ctx := context.Background()
	c := New(false, time.Minute, time.Minute)

	assert.True(t, c.Add(ctx, "k", 1, 50*time.Millisecond))
	assert.False(t, c.Add(ctx, "k", 2, 50*time.Millisecond))

	time.Sleep(80 * time.Millisecond)
	assert.True(t, c.Add(ctx, "k", 3, 50*time.Millisecond))
}

func TestDisabledCacheSkipsReads(t *testing.T) {
	ctx := context.Background()
	c := New(false, time.Minute, time.Minute)
	c.Set(ctx, "k", 1, 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "debounce:v1:ss_1:ABC123", GenerateKey(PrefixDebounce, "ss_1", "ABC123"))
}
