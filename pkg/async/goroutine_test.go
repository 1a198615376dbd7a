package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSafeGoRunsFunction(t *testing.T) {
	var ran atomic.Bool
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "test task", func(ctx context.Context) error {
		ran.Store(true)
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	if !ran.Load() {
		t.Error("expected task to run")
	}
}

func TestSafeGoRecoversPanic(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "panicking task", func(ctx context.Context) error {
		defer close(done)
		panic("boom")
	})

	select {
	case <-done:
		// Panic was recovered; the test process survived.
	case <-time.After(2 * time.Second):
		t.Fatal("task did not complete")
	}
}

func TestSafeGoSwallowsError(t *testing.T) {
	done := make(chan struct{})

	SafeGo(context.Background(), time.Second, "failing task", func(ctx context.Context) error {
		close(done)
		return errors.New("expected failure")
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestSafeGoEnforcesTimeout(t *testing.T) {
	expired := make(chan struct{})

	SafeGo(context.Background(), 10*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		close(expired)
		return ctx.Err()
	})

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("context did not expire")
	}
}

func TestSafeGoWithWaitGroup(t *testing.T) {
	var wg sync.WaitGroup
	var ran atomic.Bool

	SafeGoWithWaitGroup(context.Background(), &wg, time.Second, "tracked task", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})

	wg.Wait()
	if !ran.Load() {
		t.Error("expected tracked task to run")
	}
}
