package genstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisBumpAndSnapshot(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	s, err := NewRedisGenStore(RedisConfig{Client: rdb, Namespace: "test-" + t.Name(), TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = rdb.Del(ctx, s.key("k")).Err() })

	before, err := s.Snapshot(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	after, err := s.Bump(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if after != before+1 {
		t.Fatalf("bump: got %d want %d", after, before+1)
	}
	got, err := s.Snapshot(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if got != after {
		t.Fatalf("snapshot: got %d want %d", got, after)
	}
}

func TestNewRedisGenStoreRequiresClient(t *testing.T) {
	if _, err := NewRedisGenStore(RedisConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
