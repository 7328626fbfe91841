package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewFromClient(client)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_RoundTrip(t *testing.T) {
	c := newTestCache(t)

	if err := c.Set("rel:follow:1:2", "1", time.Minute); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	val, err := c.Get("rel:follow:1:2")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if val != "1" {
		t.Errorf("Get() = %q, want %q", val, "1")
	}

	exists, err := c.Exists("rel:follow:1:2")
	if err != nil {
		t.Fatalf("Exists() error: %v", err)
	}
	if !exists {
		t.Error("Exists() = false, want true")
	}

	if err := c.Delete("rel:follow:1:2"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := c.Get("rel:follow:1:2"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() after Delete() error = %v, want ErrCacheMiss", err)
	}
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := newTestCache(t)

	if _, err := c.Get("never-set"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("Get() error = %v, want ErrCacheMiss", err)
	}
}

func TestCache_DisabledIsNilSafe(t *testing.T) {
	var c *Cache

	if _, err := c.Get("key"); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Get() error = %v, want ErrCacheDisabled", err)
	}
	if err := c.Set("key", "val", time.Minute); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Set() error = %v, want ErrCacheDisabled", err)
	}
	if err := c.Delete("key"); !errors.Is(err, ErrCacheDisabled) {
		t.Errorf("Delete() error = %v, want ErrCacheDisabled", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil cache error = %v", err)
	}
}

func TestRelationKey(t *testing.T) {
	tests := []struct {
		name     string
		relation string
		fromID   int64
		toID     int64
		expected string
	}{
		{
			name:     "follow",
			relation: "follow",
			fromID:   1,
			toID:     2,
			expected: "rel:follow:1:2",
		},
		{
			name:     "direction matters",
			relation: "follow",
			fromID:   2,
			toID:     1,
			expected: "rel:follow:2:1",
		},
		{
			name:     "block",
			relation: "block",
			fromID:   10,
			toID:     20,
			expected: "rel:block:10:20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RelationKey(tt.relation, tt.fromID, tt.toID)
			if result != tt.expected {
				t.Errorf("RelationKey() = %v, want %v", result, tt.expected)
			}
		})
	}
}
