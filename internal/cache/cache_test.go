package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilCacheIsNoOp(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	var dest string
	assert.False(t, c.Get(ctx, "risk", "outbreak:risk:loc_a", &dest))
	assert.Empty(t, dest)

	// None of these may panic on a nil receiver.
	c.Set(ctx, "outbreak:risk:loc_a", "value", time.Minute)
	c.Delete(ctx, "outbreak:risk:loc_a")
	c.DeleteByPattern(ctx, "outbreak:risk:*")
}

func TestKey(t *testing.T) {
	c := New(nil, nil, nil, "outbreak")
	assert.Equal(t, "outbreak:risk:loc_berlin", c.Key("risk", "loc_berlin"))
	assert.Equal(t, "outbreak:summary:regional:DE", c.Key("summary", "regional", "DE"))

	var nilCache *Cache
	assert.Equal(t, "risk:loc_berlin", nilCache.Key("risk", "loc_berlin"))
}

func TestNilClientIsNoOp(t *testing.T) {
	c := New(nil, nil, nil, "outbreak")
	ctx := context.Background()

	var dest int
	assert.False(t, c.Get(ctx, "risk", c.Key("risk", "loc_a"), &dest))
	c.Set(ctx, c.Key("risk", "loc_a"), 42, time.Minute)
	c.Delete(ctx, c.Key("risk", "loc_a"))
	c.DeleteByPattern(ctx, c.Key("risk", "*"))
}
