package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "cloudrank/pkg/logx"
)

// ErrInvalidSpec marks a cron expression rejected at registration time.
var ErrInvalidSpec = errors.New("invalid cron expression")

const heartbeatInterval = 10 * time.Minute

// Scheduler owns the task registry and the background timer loop.
type Scheduler struct {
	mu    sync.Mutex
	tasks map[string]*task

	cfg    Config
	loc    *time.Location
	parser cron.Parser
	target Target
	log    logx.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup

	// now is the clock used for due checks; swapped in tests.
	now func() time.Time
}

func New(cfg Config, target Target, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	s := &Scheduler{
		tasks: map[string]*task{},
		cfg:   cfg,
		// Strict 5-field specs (minute hour dom month dow), matching the
		// format accepted at the config surface.
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		target: target,
		log:    log,
		now:    time.Now,
	}
	s.loc = s.loadLocation(cfg.Timezone)
	return s
}

func (s *Scheduler) loadLocation(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// Register validates spec and stores the task with its first next-run
// computed from the current time. Registering an existing name overwrites
// the prior entry.
func (s *Scheduler) Register(name, spec string, cb Callback) error {
	if cb == nil {
		return errors.New("nil callback")
	}
	schedule, err := s.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSpec, spec, err)
	}

	now := s.now().In(s.loc)
	next := schedule.Next(now)

	s.mu.Lock()
	if _, exists := s.tasks[name]; exists {
		s.log.Warn("task re-registered, previous schedule replaced", logx.String("task", name))
	}
	s.tasks[name] = &task{
		name:     name,
		spec:     spec,
		schedule: schedule,
		cb:       cb,
		nextRun:  next,
	}
	s.mu.Unlock()

	s.log.Info("task registered",
		logx.String("task", name),
		logx.String("spec", spec),
		logx.Time("next_run", next))
	return nil
}

// Deregister removes the task. Returns false if the name is unknown.
func (s *Scheduler) Deregister(name string) bool {
	s.mu.Lock()
	_, ok := s.tasks[name]
	delete(s.tasks, name)
	s.mu.Unlock()
	if ok {
		s.log.Info("task deregistered", logx.String("task", name))
	} else {
		s.log.Warn("deregister of unknown task", logx.String("task", name))
	}
	return ok
}

// NextRun reports the task's next scheduled firing.
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		return time.Time{}, false
	}
	return t.nextRun, true
}

// Snapshot returns a point-in-time view of all registered tasks.
func (s *Scheduler) Snapshot() []TaskInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, TaskInfo{Name: t.name, Spec: t.spec, NextRun: t.nextRun, Running: t.running})
	}
	return out
}

// Start spawns the timer loop. Idempotent: a second call while running is a
// warned no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		s.log.Warn("scheduler already running")
		return
	}
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(stopCh)
	}()
	s.log.Info("scheduler started", logx.Duration("poll", s.cfg.PollInterval), logx.String("tz", s.loc.String()))
}

// Stop signals the timer loop to exit and waits for it, bounded by ctx.
// Idempotent. Tasks already submitted keep running on the target.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		s.log.Warn("scheduler not running")
		return
	}
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	close(stopCh)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out; loop exits in background")
	}
}

// loop is the detection loop. It runs on its own goroutine and must never
// exit except via Stop; every iteration is panic-guarded and errors back
// off briefly instead of terminating the loop.
func (s *Scheduler) loop(stopCh chan struct{}) {
	s.log.Debug("timer loop started")
	lastHeartbeat := s.now()

	for {
		backoff := s.tickSafe(&lastHeartbeat)

		wait := s.cfg.PollInterval
		if backoff {
			wait = 5 * time.Second
		}
		select {
		case <-stopCh:
			s.log.Debug("timer loop exiting")
			return
		case <-time.After(wait):
		}
	}
}

// tickSafe runs one detection pass; it reports true when the pass panicked
// and the loop should back off.
func (s *Scheduler) tickSafe(lastHeartbeat *time.Time) (backoff bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("timer loop error, backing off", logx.Any("panic", r))
			backoff = true
		}
	}()

	now := s.now().In(s.loc)
	if now.Sub(*lastHeartbeat) >= heartbeatInterval {
		s.mu.Lock()
		n := len(s.tasks)
		s.mu.Unlock()
		s.log.Info("scheduler heartbeat", logx.Time("now", now), logx.Int("tasks", n))
		*lastHeartbeat = now
	}

	for _, due := range s.collectDue(now) {
		s.fire(due, now)
	}
	return false
}

// collectDue flips due, non-running tasks to running and returns them.
// A task is due once nextRun <= now; lateness only changes how loudly the
// firing is logged, a late task is never skipped.
func (s *Scheduler) collectDue(now time.Time) []*task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*task
	for _, t := range s.tasks {
		if t.running || t.nextRun.After(now) {
			continue
		}
		late := now.Sub(t.nextRun)
		switch {
		case late > s.cfg.GraceMax:
			s.log.Warn("task overdue beyond grace window, firing anyway",
				logx.String("task", t.name),
				logx.Time("scheduled", t.nextRun),
				logx.Duration("late", late))
		case late > s.cfg.GraceMin:
			s.log.Warn("task firing late",
				logx.String("task", t.name),
				logx.Time("scheduled", t.nextRun),
				logx.Duration("late", late))
		default:
			s.log.Info("task due",
				logx.String("task", t.name),
				logx.Time("scheduled", t.nextRun))
		}
		t.running = true
		due = append(due, t)
	}
	return due
}

// fire submits one due task onto the target context. Called from the timer
// goroutine; the callback itself runs on the target.
func (s *Scheduler) fire(t *task, now time.Time) {
	name := t.name
	cb := t.cb

	fut, err := s.target.Submit("task:"+name, func(ctx context.Context) error {
		// Finally-semantics: whatever the callback does, the task gets a
		// fresh next-run and is released for future firings.
		defer s.finish(name)
		return cb(ctx)
	})
	if err != nil {
		// The target was not accepting work. Roll back the running flag so
		// the next tick retries instead of losing the firing.
		s.log.Error("task submission failed, will retry next tick",
			logx.String("task", name), logx.Err(err))
		s.mu.Lock()
		if cur, ok := s.tasks[name]; ok {
			cur.running = false
		}
		s.mu.Unlock()
		return
	}

	started := now
	fut.OnDone(func(err error) {
		switch {
		case err == nil:
			s.log.Info("task completed", logx.String("task", name), logx.Duration("took", s.now().Sub(started)))
		case errors.Is(err, context.Canceled):
			s.log.Warn("task canceled", logx.String("task", name))
		default:
			s.log.Error("task failed", logx.String("task", name), logx.Err(err))
		}
	})
}

// finish recomputes the task's next run and clears the running flag. If
// recomputation yields nothing usable, the task retries in one hour rather
// than staying stuck.
func (s *Scheduler) finish(name string) {
	now := s.now().In(s.loc)

	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[name]
	if !ok {
		// Deregistered while running; nothing to reschedule.
		return
	}

	next := t.schedule.Next(now)
	if next.IsZero() || !next.After(now) {
		next = now.Add(time.Hour)
		s.log.Warn("next-run computation failed, retrying in one hour",
			logx.String("task", name), logx.Time("next_run", next))
	}
	t.nextRun = next
	t.running = false
	s.log.Info("task rescheduled", logx.String("task", name), logx.Time("next_run", next))
}
