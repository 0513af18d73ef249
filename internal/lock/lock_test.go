package lock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trunov/mediaconv/internal/redisholder"
)

func newPair(t *testing.T) (*miniredis.Miniredis, *redisholder.Holder) {
	t.Helper()
	mr := miniredis.RunT(t)
	cl := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cl.Close() })
	return mr, redisholder.NewHolder(cl)
}

func newManager(h *redisholder.Holder, instance string) *Manager {
	return NewManager(h, "converter:lock", instance, 10*time.Second, zerolog.Nop())
}

func TestAcquireOnce(t *testing.T) {
	mr, h := newPair(t)
	ctx := context.Background()
	a := newManager(h, "worker-a")
	b := newManager(h, "worker-b")

	if !a.Acquire(ctx, "job-1") {
		t.Fatal("first Acquire should win")
	}
	if b.Acquire(ctx, "job-1") {
		t.Fatal("second Acquire should lose")
	}
	if a.Acquire(ctx, "job-1") {
		t.Fatal("re-Acquire by the holder should also lose")
	}
	if got, _ := mr.Get("converter:lock:job-1"); got != "worker-a" {
		t.Errorf("lock value = %q, want worker-a", got)
	}
	if ttl := mr.TTL("converter:lock:job-1"); ttl != 10*time.Second {
		t.Errorf("TTL = %v, want 10s", ttl)
	}
}

func TestReleaseByHolder(t *testing.T) {
	mr, h := newPair(t)
	ctx := context.Background()
	a := newManager(h, "worker-a")
	b := newManager(h, "worker-b")

	a.Acquire(ctx, "job-1")
	a.Release(ctx, "job-1")
	if mr.Exists("converter:lock:job-1") {
		t.Fatal("holder release should delete the entry")
	}
	if !b.Acquire(ctx, "job-1") {
		t.Fatal("Acquire after release should win")
	}
}

func TestReleaseByNonHolder(t *testing.T) {
	mr, h := newPair(t)
	ctx := context.Background()
	a := newManager(h, "worker-a")
	b := newManager(h, "worker-b")

	a.Acquire(ctx, "job-1")
	b.Release(ctx, "job-1")
	if got, _ := mr.Get("converter:lock:job-1"); got != "worker-a" {
		t.Fatalf("non-holder release removed the entry, value = %q", got)
	}
}

func TestExpiredLockReacquired(t *testing.T) {
	mr, h := newPair(t)
	ctx := context.Background()
	a := newManager(h, "worker-a")
	b := newManager(h, "worker-b")

	a.Acquire(ctx, "job-1")
	mr.FastForward(11 * time.Second)
	if !b.Acquire(ctx, "job-1") {
		t.Fatal("Acquire after TTL should win")
	}
	// the slow first holder must not delete b's entry
	a.Release(ctx, "job-1")
	if got, _ := mr.Get("converter:lock:job-1"); got != "worker-b" {
		t.Errorf("lock value = %q, want worker-b", got)
	}
}

func TestConcurrentAcquire(t *testing.T) {
	_, h := newPair(t)
	ctx := context.Background()

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		m := newManager(h, fmt.Sprintf("worker-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire(ctx, "job-42") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}

func TestTwoWorkersRace(t *testing.T) {
	_, h := newPair(t)
	ctx := context.Background()
	a := newManager(h, "worker-a")
	b := newManager(h, "worker-b")

	results := make(chan bool, 2)
	start := make(chan struct{})
	for _, m := range []*Manager{a, b} {
		go func(m *Manager) {
			<-start
			results <- m.Acquire(ctx, "job-42")
		}(m)
	}
	close(start)
	r1, r2 := <-results, <-results
	if r1 == r2 {
		t.Fatalf("got %v and %v, want exactly one true", r1, r2)
	}
}

func TestAcquireFailsClosed(t *testing.T) {
	mr, h := newPair(t)
	m := newManager(h, "worker-a")
	mr.Close()

	if m.Acquire(context.Background(), "job-1") {
		t.Fatal("Acquire must report false when Redis is unreachable")
	}
	// must not panic or block
	m.Release(context.Background(), "job-1")
}
