package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCache_CoalescesConcurrentLoads(t *testing.T) {
	c := New(func() string { return "" })

	var loaderCalls int32
	release := make(chan struct{})
	started := make(chan struct{})
	var startOnce sync.Once

	loader := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&loaderCalls, 1)
		startOnce.Do(func() { close(started) })
		<-release
		return "payload", nil
	}

	const callers = 20
	results := make([]string, callers)
	var wg sync.WaitGroup

	// First caller opens the flight, the rest join before it settles.
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = c.Get(context.Background(), "stats", false, loader)
	}()
	<-started

	var ready sync.WaitGroup
	for i := 1; i < callers; i++ {
		wg.Add(1)
		ready.Add(1)
		go func(i int) {
			defer wg.Done()
			ready.Done()
			results[i] = c.Get(context.Background(), "stats", false, loader)
		}(i)
	}
	ready.Wait()
	// Give the joiners time to reach the in-flight group before it settles.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls := atomic.LoadInt32(&loaderCalls); calls != 1 {
		t.Errorf("Expected exactly 1 loader call, got %d", calls)
	}
	for i, result := range results {
		if result != "payload" {
			t.Errorf("Caller %d got %q, want %q", i, result, "payload")
		}
	}
}

func TestCache_ForceRefreshAlwaysInvokesLoader(t *testing.T) {
	c := New(func() string { return "" })

	var loaderCalls int32
	loader := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&loaderCalls, 1)
		return "fresh", nil
	}

	c.Get(context.Background(), "stats", false, loader)
	c.Get(context.Background(), "stats", true, loader)
	c.Get(context.Background(), "stats", true, loader)

	if calls := atomic.LoadInt32(&loaderCalls); calls != 3 {
		t.Errorf("Expected 3 loader calls, got %d", calls)
	}
}

func TestCache_StaleOnError(t *testing.T) {
	c := New(func() string { return "empty" })

	good := func(ctx context.Context) (string, error) { return "cached", nil }
	bad := func(ctx context.Context) (string, error) { return "", errors.New("backend down") }

	if got := c.Get(context.Background(), "stats", false, good); got != "cached" {
		t.Fatalf("Expected %q, got %q", "cached", got)
	}

	// A failed refresh serves the previous payload instead of the error.
	if got := c.Get(context.Background(), "stats", true, bad); got != "cached" {
		t.Errorf("Expected stale %q on loader failure, got %q", "cached", got)
	}

	if _, ok := c.Cached("stats"); !ok {
		t.Errorf("Expected cached entry to survive a failed refresh")
	}
}

func TestCache_EmptyPayloadWhenNothingCached(t *testing.T) {
	c := New(func() string { return "empty" })

	bad := func(ctx context.Context) (string, error) { return "", errors.New("backend down") }

	if got := c.Get(context.Background(), "stats", false, bad); got != "empty" {
		t.Errorf("Expected empty payload %q, got %q", "empty", got)
	}
	if _, ok := c.Cached("stats"); ok {
		t.Errorf("Failed load must not populate the cache")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := New(func() int { return -1 })

	c.Get(context.Background(), "k", false, func(ctx context.Context) (int, error) { return 42, nil })
	if _, ok := c.Cached("k"); !ok {
		t.Fatalf("Expected entry after successful load")
	}

	c.Invalidate("k")
	if _, ok := c.Cached("k"); ok {
		t.Errorf("Expected entry to be dropped after Invalidate")
	}
}
