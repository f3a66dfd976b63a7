package lockmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAcquireMutualExclusion(t *testing.T) {
	m := New(Config{WaitTimeout: time.Second, MaxPending: 64})

	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Acquire(context.Background(), "agenda:A", func() error {
				mu.Lock()
				active++
				if active > maxSeen {
					maxSeen = active
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
			if err != nil {
				t.Errorf("acquire failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("expected at most 1 holder, saw %d", maxSeen)
	}
}

func TestAcquireIndependentKeys(t *testing.T) {
	m := New(Config{WaitTimeout: 100 * time.Millisecond, MaxPending: 4})

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = m.Acquire(context.Background(), "agenda:A", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	// A held lock on one key must not delay another key.
	done := make(chan error, 1)
	go func() {
		done <- m.Acquire(context.Background(), "agenda:B", func() error { return nil })
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("acquire on free key failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("acquire on free key blocked")
	}
}

func TestAcquireTimeout(t *testing.T) {
	m := New(Config{WaitTimeout: 20 * time.Millisecond, MaxPending: 4})

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = m.Acquire(context.Background(), "agenda:A", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	start := time.Now()
	err := m.Acquire(context.Background(), "agenda:A", func() error { return nil })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
	if !IsBusy(err) {
		t.Error("timeout should classify as busy")
	}
}

func TestAcquireQueueFull(t *testing.T) {
	m := New(Config{WaitTimeout: 500 * time.Millisecond, MaxPending: 2})

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = m.Acquire(context.Background(), "agenda:A", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	// Fill the pending queue (holder occupies one pending slot until
	// it finishes, so one more waiter saturates MaxPending=2).
	waiting := make(chan error, 1)
	go func() {
		waiting <- m.Acquire(context.Background(), "agenda:A", func() error { return nil })
	}()
	time.Sleep(10 * time.Millisecond)

	err := m.Acquire(context.Background(), "agenda:A", func() error { return nil })
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if !IsBusy(err) {
		t.Error("queue-full should classify as busy")
	}

	close(release)
	if err := <-waiting; err != nil {
		t.Errorf("queued waiter should eventually acquire: %v", err)
	}
}

func TestAcquireContextCanceled(t *testing.T) {
	m := New(Config{WaitTimeout: time.Second, MaxPending: 4})

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = m.Acquire(context.Background(), "agenda:A", func() error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := m.Acquire(ctx, "agenda:A", func() error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
