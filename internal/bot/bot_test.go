package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"cloudrank/internal/history"
	"cloudrank/internal/notifier"
	"cloudrank/internal/runner"
	"cloudrank/internal/scheduler"
	"cloudrank/internal/transport"
	"cloudrank/internal/wordcloud"
	logx "cloudrank/pkg/logx"
)

type captureAdapter struct {
	mu     sync.Mutex
	texts  []string
	photos []string
}

func (c *captureAdapter) Start(context.Context, chan<- transport.Update) error { return nil }
func (c *captureAdapter) Stop(context.Context) error                           { return nil }

func (c *captureAdapter) SendText(_ context.Context, _ transport.ChatTarget, text string, _ *transport.SendOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *captureAdapter) SendPhoto(_ context.Context, _ transport.ChatTarget, path, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.photos = append(c.photos, path)
	return nil
}

func (c *captureAdapter) counts() (texts, photos int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.texts), len(c.photos)
}

type fixture struct {
	svc     *Service
	updates chan transport.Update
	adapter *captureAdapter
	store   *history.Store
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := history.Open(history.Config{Path: filepath.Join(t.TempDir(), "h.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	engine, err := wordcloud.NewEngine(wordcloud.Options{Width: 300, Height: 150}, t.TempDir(), logx.Nop())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	run := runner.New(32, logx.Nop())
	run.Start(ctx)
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		run.Stop(sctx)
	})

	sched := scheduler.New(scheduler.Config{}, run, logx.Nop())

	adapter := &captureAdapter{}
	notif := notifier.New(notifier.Config{RatePerSec: 1000}, adapter, logx.Nop())
	notif.Start(ctx)
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		notif.Stop(sctx)
	})

	updates := make(chan transport.Update, 32)
	svc := New(cfg, Deps{
		History:   store,
		Engine:    engine,
		Scheduler: sched,
		Runner:    run,
		Notifier:  notif,
	}, updates, logx.Nop())

	if err := svc.Start(ctx); err != nil {
		t.Fatalf("bot start: %v", err)
	}
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Stop(sctx)
	})

	return &fixture{svc: svc, updates: updates, adapter: adapter, store: store}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func groupMsg(chatID int64, sender int64, name, text string) transport.Update {
	return transport.Update{Message: &transport.Message{
		ChatID:     chatID,
		SenderID:   sender,
		SenderName: name,
		Text:       text,
		IsGroup:    true,
	}}
}

func TestIngestRecordsEnabledGroupsOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{EnabledGroups: []string{"100"}})

	f.updates <- groupMsg(100, 1, "Ada", "hello concurrency")
	f.updates <- groupMsg(999, 2, "Eve", "should be ignored")

	ctx := context.Background()
	ok := waitFor(t, 2*time.Second, func() bool {
		n, _ := f.store.Count(ctx, sessionID(100), time.Time{})
		return n == 1
	})
	if !ok {
		t.Fatal("enabled group message never recorded")
	}
	if n, _ := f.store.Count(ctx, sessionID(999), time.Time{}); n != 0 {
		t.Fatalf("disabled group recorded %d messages", n)
	}
}

func TestTodayCommandRendersAndRanks(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{EnabledGroups: []string{"100"}, RankingEnabled: true})

	for i := 0; i < 3; i++ {
		f.updates <- groupMsg(100, 1, "Ada", "channels goroutines select mutex")
	}
	f.updates <- groupMsg(100, 2, "Bob", "goroutines everywhere always")

	ctx := context.Background()
	if !waitFor(t, 2*time.Second, func() bool {
		n, _ := f.store.Count(ctx, sessionID(100), time.Time{})
		return n == 4
	}) {
		t.Fatal("messages never recorded")
	}

	f.updates <- groupMsg(100, 1, "Ada", "/today")

	if !waitFor(t, 5*time.Second, func() bool {
		texts, photos := f.adapter.counts()
		return photos == 1 && texts >= 1
	}) {
		texts, photos := f.adapter.counts()
		t.Fatalf("photo/ranking not delivered (texts=%d photos=%d)", texts, photos)
	}

	f.adapter.mu.Lock()
	defer f.adapter.mu.Unlock()
	ranking := f.adapter.texts[len(f.adapter.texts)-1]
	if !strings.Contains(ranking, "🥇 Ada: 3 messages") {
		t.Fatalf("ranking = %q, want Ada on top with 3", ranking)
	}
	if !strings.Contains(f.adapter.photos[0], "wordcloud_") {
		t.Fatalf("photo path = %q", f.adapter.photos[0])
	}
}

func TestCommandsIgnoredInDisabledChats(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{EnabledGroups: []string{"100"}})

	f.updates <- groupMsg(999, 1, "Eve", "/today")
	f.updates <- groupMsg(999, 1, "Eve", "/rank")

	time.Sleep(100 * time.Millisecond)
	texts, photos := f.adapter.counts()
	if texts != 0 || photos != 0 {
		t.Fatalf("disabled chat got responses (texts=%d photos=%d)", texts, photos)
	}
}

func TestHelpWorksAnywhere(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{})

	f.updates <- transport.Update{Message: &transport.Message{
		ChatID: 7, SenderID: 1, Text: "/help", IsGroup: false,
	}}

	if !waitFor(t, 2*time.Second, func() bool {
		texts, _ := f.adapter.counts()
		return texts == 1
	}) {
		t.Fatal("/help never answered")
	}
	f.adapter.mu.Lock()
	defer f.adapter.mu.Unlock()
	if !strings.Contains(f.adapter.texts[0], "/cloud") {
		t.Fatalf("help text = %q", f.adapter.texts[0])
	}
}

func TestDailyTaskRegistered(t *testing.T) {
	t.Parallel()
	f := newFixture(t, Config{
		EnabledGroups: []string{"100"},
		DailyEnabled:  true,
		DailyTime:     "23:30",
	})

	next, ok := f.svc.deps.Scheduler.NextRun(taskDaily)
	if !ok {
		t.Fatal("daily task not registered")
	}
	if next.Hour() != 23 || next.Minute() != 30 {
		t.Fatalf("next run = %v, want 23:30", next)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	t.Parallel()
	id, ok := chatFromSession(sessionID(-1001234))
	if !ok || id != -1001234 {
		t.Fatalf("round trip = %d, %v", id, ok)
	}
	if _, ok := chatFromSession("garbage"); ok {
		t.Fatal("garbage session parsed")
	}
}
