package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "cloudrank/pkg/logx"
)

func TestSubmitRunsInOrder(t *testing.T) {
	t.Parallel()
	r := New(16, logx.Nop())
	r.Start(context.Background())
	defer r.Stop(context.Background())

	var order []int
	var futs []*Future
	for i := 0; i < 5; i++ {
		i := i
		f, err := r.Submit("t", func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		futs = append(futs, f)
	}
	for _, f := range futs {
		select {
		case <-f.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("future never completed")
		}
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("execution order %v, want ascending", order)
		}
	}
}

func TestSubmitAfterStop(t *testing.T) {
	t.Parallel()
	r := New(4, logx.Nop())
	r.Start(context.Background())
	r.Stop(context.Background())

	if _, err := r.Submit("late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrNotAccepting) {
		t.Fatalf("Submit after stop = %v, want ErrNotAccepting", err)
	}
}

func TestSubmitQueueFull(t *testing.T) {
	t.Parallel()
	r := New(1, logx.Nop())
	r.Start(context.Background())
	defer r.Stop(context.Background())

	block := make(chan struct{})
	started := make(chan struct{})
	if _, err := r.Submit("blocker", func(ctx context.Context) error {
		close(started)
		<-block
		return nil
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	// One unit fits in the queue; the next must be rejected, not dropped.
	if _, err := r.Submit("queued", func(ctx context.Context) error { return nil }); err != nil {
		t.Fatalf("Submit queued: %v", err)
	}
	if _, err := r.Submit("overflow", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrNotAccepting) {
		t.Fatalf("Submit overflow = %v, want ErrNotAccepting", err)
	}
	close(block)
}

func TestFutureOnDone(t *testing.T) {
	t.Parallel()
	r := New(4, logx.Nop())
	r.Start(context.Background())
	defer r.Stop(context.Background())

	boom := errors.New("boom")
	var calls atomic.Int32
	var got atomic.Value

	f, err := r.Submit("fail", func(ctx context.Context) error { return boom })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	done := make(chan struct{})
	f.OnDone(func(err error) {
		calls.Add(1)
		got.Store(err)
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDone callback never fired")
	}
	if err, _ := got.Load().(error); !errors.Is(err, boom) {
		t.Fatalf("callback error = %v, want boom", err)
	}

	// Late attachment fires immediately.
	f.OnDone(func(err error) { calls.Add(1) })
	if calls.Load() != 2 {
		t.Fatalf("callback calls = %d, want 2", calls.Load())
	}
	if !errors.Is(f.Err(), boom) {
		t.Fatalf("Err() = %v, want boom", f.Err())
	}
}

func TestPanicCapturedAsError(t *testing.T) {
	t.Parallel()
	r := New(4, logx.Nop())
	r.Start(context.Background())
	defer r.Stop(context.Background())

	f, err := r.Submit("panics", func(ctx context.Context) error { panic("kaboom") })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("future never completed after panic")
	}
	if f.Err() == nil {
		t.Fatal("expected panic to surface as error")
	}

	// Worker survives the panic.
	f2, err := r.Submit("after", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Submit after panic: %v", err)
	}
	select {
	case <-f2.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive panic")
	}
}
