package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloudrank/internal/transport"
	logx "cloudrank/pkg/logx"
)

type fakeAdapter struct {
	mu         sync.Mutex
	texts      []string
	photos     []string
	failPhotos int // fail this many SendPhoto calls
	failTexts  int
}

func (f *fakeAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                           { return nil }

func (f *fakeAdapter) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTexts > 0 {
		f.failTexts--
		return errors.New("send failed")
	}
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeAdapter) SendPhoto(_ context.Context, _ transport.ChatTarget, path, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPhotos > 0 {
		f.failPhotos--
		return errors.New("upload failed")
	}
	f.photos = append(f.photos, path)
	return nil
}

func (f *fakeAdapter) snapshot() (texts, photos []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...), append([]string(nil), f.photos...)
}

func fastConfig() Config {
	return Config{
		Workers:       1,
		QueueSize:     16,
		RatePerSec:    1000,
		RetryMax:      1,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}
}

func TestDeliversTextAndPhoto(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	s := New(fastConfig(), ad, logx.Nop())
	s.Start(context.Background())

	if err := s.Enqueue(context.Background(), Delivery{Text: "hello"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Enqueue(context.Background(), Delivery{Text: "cap", PhotoPath: "/tmp/a.png"}); err != nil {
		t.Fatalf("Enqueue photo: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	texts, photos := ad.snapshot()
	if len(texts) != 1 || texts[0] != "hello" {
		t.Fatalf("texts = %v", texts)
	}
	if len(photos) != 1 || photos[0] != "/tmp/a.png" {
		t.Fatalf("photos = %v", photos)
	}
}

func TestRetriesTransientFailure(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failTexts: 1}
	s := New(fastConfig(), ad, logx.Nop())
	s.Start(context.Background())

	if err := s.Enqueue(context.Background(), Delivery{Text: "retry me"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	texts, _ := ad.snapshot()
	if len(texts) != 1 {
		t.Fatalf("texts = %v, want delivery after retry", texts)
	}
}

func TestPhotoDegradesToText(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{failPhotos: 10}
	s := New(fastConfig(), ad, logx.Nop())
	s.Start(context.Background())

	if err := s.Enqueue(context.Background(), Delivery{Text: "summary", PhotoPath: "/gone.png"}); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	texts, photos := ad.snapshot()
	if len(photos) != 0 {
		t.Fatalf("photos = %v, want none", photos)
	}
	if len(texts) != 1 || texts[0] != "summary" {
		t.Fatalf("texts = %v, want degraded text", texts)
	}
}

func TestEnqueueAfterStop(t *testing.T) {
	t.Parallel()
	s := New(fastConfig(), &fakeAdapter{}, logx.Nop())
	s.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if err := s.Enqueue(context.Background(), Delivery{Text: "late"}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Enqueue after stop = %v, want ErrStopped", err)
	}
}

func TestQueueFull(t *testing.T) {
	t.Parallel()
	cfg := fastConfig()
	cfg.QueueSize = 1
	s := New(cfg, &fakeAdapter{}, logx.Nop())
	// Not started: queue must exist for this test, so start then stop intake
	// is not an option; instead start with a blocked worker.
	s.Start(context.Background())
	s.mu.Lock()
	s.accepting = true
	q := s.queue
	s.mu.Unlock()

	// Fill the buffer directly so the worker race doesn't matter.
	q <- Delivery{Text: "occupies buffer"}
	err := s.Enqueue(context.Background(), Delivery{Text: "overflow"})
	if err != nil && !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue = %v, want nil or ErrQueueFull", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
