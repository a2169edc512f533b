package debugger

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestCachedDispatchSingleFlight(t *testing.T) {
	rc := newRequestCache()
	key := RequestKey{Command: "threads"}

	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	results := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func() {
			v, err := cachedDispatch(context.Background(), rc, key, "threads", fetch, nil)
			if err != nil {
				t.Errorf("cachedDispatch: %v", err)
				return
			}
			results <- v
		}()
	}

	time.Sleep(20 * time.Millisecond) // let all three callers join the in-flight entry
	close(release)

	for i := 0; i < 3; i++ {
		select {
		case v := <-results:
			if v != 42 {
				t.Errorf("result = %d, want 42", v)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for cachedDispatch result")
		}
	}

	if got := calls.Load(); got != 1 {
		t.Errorf("fetch called %d times, want 1", got)
	}
}

func TestCachedDispatchDistinctKeys(t *testing.T) {
	rc := newRequestCache()
	var calls atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		calls.Add(1)
		return int(calls.Load()), nil
	}

	v1, err := cachedDispatch(context.Background(), rc, RequestKey{Command: "a"}, "a", fetch, nil)
	if err != nil {
		t.Fatalf("cachedDispatch a: %v", err)
	}
	v2, err := cachedDispatch(context.Background(), rc, RequestKey{Command: "b"}, "b", fetch, nil)
	if err != nil {
		t.Fatalf("cachedDispatch b: %v", err)
	}
	if v1 == v2 {
		t.Errorf("distinct keys shared a cache entry: v1=%d v2=%d", v1, v2)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("fetch called %d times, want 2", got)
	}
}

func TestRequestCacheInvalidateAllCancelsWaiters(t *testing.T) {
	rc := newRequestCache()
	key := RequestKey{Command: "stackTrace"}

	started := make(chan struct{})
	block := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		close(started)
		<-block
		return 1, nil
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := cachedDispatch(context.Background(), rc, key, "stackTrace", fetch, nil)
		errCh <- err
	}()

	<-started
	rc.invalidateAll()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("err = %v, want ErrCancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for invalidated waiter")
	}
	close(block)
}

func TestCachedDispatchContextCancellation(t *testing.T) {
	rc := newRequestCache()
	key := RequestKey{Command: "variables"}
	block := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		<-block
		return 1, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := cachedDispatch(ctx, rc, key, "variables", fetch, nil)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancelled caller")
	}
	close(block)
}

// TestCachedDispatchReduceRunsOnceBeforeWaitersResolve exercises the
// §4.4 fetch(cmd, reduce) contract directly: reduce must run exactly
// once per fetch, from the issuing goroutine, and every joined waiter
// must observe its effect by the time its own call returns.
func TestCachedDispatchReduceRunsOnceBeforeWaitersResolve(t *testing.T) {
	rc := newRequestCache()
	key := RequestKey{Command: "threads"}

	var reduceCalls atomic.Int32
	var applied atomic.Bool
	release := make(chan struct{})
	fetch := func(ctx context.Context) (int, error) {
		<-release
		return 7, nil
	}
	reduce := func(v int) {
		reduceCalls.Add(1)
		applied.Store(true)
	}

	results := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := cachedDispatch(context.Background(), rc, key, "threads", fetch, reduce)
			if err != nil {
				t.Errorf("cachedDispatch: %v", err)
				return
			}
			results <- applied.Load()
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)

	for i := 0; i < 4; i++ {
		select {
		case seenApplied := <-results:
			if !seenApplied {
				t.Error("a waiter observed its result before reduce ran")
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for cachedDispatch result")
		}
	}
	if got := reduceCalls.Load(); got != 1 {
		t.Errorf("reduce called %d times, want exactly 1", got)
	}
}
