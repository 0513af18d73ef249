package redisholder

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/config"
)

func TestBuildSingleNode(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h, err := Build(ctx, config.RedisConfig{Addr: mr.Addr(), HealthCheckInterval: 60, DialTimeout: 1, ReadTimeout: 1, WriteTimeout: 1}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := h.Get().Set(ctx, "k", "v", 0).Err(); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got, _ := mr.Get("k"); got != "v" {
		t.Errorf("k = %q, want v", got)
	}
}

func TestBuildNoReachableNode(t *testing.T) {
	_, err := Build(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1", DialTimeout: 1}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected error when no node answers")
	}
}

func TestHolderSwap(t *testing.T) {
	a := redis.NewClient(&redis.Options{Addr: "a:1"})
	b := redis.NewClient(&redis.Options{Addr: "b:1"})
	h := NewHolder(a)
	if h.Get() != a {
		t.Fatal("Get should return the initial client")
	}
	if old := h.swap(b); old != a {
		t.Errorf("swap returned %v, want first client", old)
	}
	if h.Get() != b {
		t.Error("Get should return the swapped client")
	}
	_ = a.Close()
	_ = h.Close()
}
