package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-redis/redis/v8"
)

var errOffline = errors.New("redis offline")

// countingHook records commands and fails them before they reach the network.
type countingHook struct {
	evals atomic.Int32
}

func (h *countingHook) BeforeProcess(ctx context.Context, cmd redis.Cmder) (context.Context, error) {
	if name := cmd.Name(); name == "evalsha" || name == "eval" {
		h.evals.Add(1)
	}
	return ctx, errOffline
}

func (h *countingHook) AfterProcess(context.Context, redis.Cmder) error { return nil }

func (h *countingHook) BeforeProcessPipeline(ctx context.Context, _ []redis.Cmder) (context.Context, error) {
	return ctx, errOffline
}

func (h *countingHook) AfterProcessPipeline(context.Context, []redis.Cmder) error { return nil }

func TestNewRedisRequiresClient(t *testing.T) {
	if _, err := NewRedis(nil, "courtsched:lock:"); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestRedisUnlockRunsOnceUnderConcurrentCalls(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	hook := &countingHook{}
	client.AddHook(hook)

	l, err := NewRedis(client, "courtsched:lock:")
	if err != nil {
		t.Fatalf("new redis lock: %v", err)
	}
	unlock := l.releaser(context.Background(), "courtsched:lock:court:1:2026-10-20", "token")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock()
		}()
	}
	wg.Wait()
	unlock()

	if got := hook.evals.Load(); got != 1 {
		t.Fatalf("release script ran %d times, want 1", got)
	}
}

func TestRedisLockReportsAcquireError(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	client.AddHook(&countingHook{})

	l, err := NewRedis(client, "courtsched:lock:")
	if err != nil {
		t.Fatalf("new redis lock: %v", err)
	}
	if _, err := l.Lock(context.Background(), "court:1:2026-10-20"); !errors.Is(err, errOffline) {
		t.Fatalf("lock err = %v, want %v", err, errOffline)
	}
}
