package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestNewStore_AlwaysReturnsStorage(t *testing.T) {
	if s := NewStore(RedisConfig{}); s == nil {
		t.Fatalf("expected non-nil memory store when redis addr empty")
	}

	if s := NewStore(RedisConfig{Addr: "127.0.0.1:1", DB: 0}); s == nil {
		t.Fatalf("expected non-nil store even with unreachable redis")
	}
}

func TestNewStore_UsesRedisWhenReachable(t *testing.T) {
	mr := miniredis.RunT(t)

	s := NewStore(RedisConfig{Addr: mr.Addr()})
	if s == nil {
		t.Fatalf("expected redis store")
	}
	if err := s.Set("limiter:k", []byte("1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("limiter:k") {
		t.Fatalf("expected key to land in redis")
	}
}
