package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"cloudrank/internal/runner"
)

// Config controls the scheduler service.
type Config struct {
	// PollInterval is how often the timer loop checks for due tasks.
	PollInterval time.Duration // default 1s
	// GraceMin..GraceMax is the lateness window treated as ordinary
	// scheduling drift (system sleep, GC pause). Firings later than
	// GraceMax still happen but are logged as anomalous.
	GraceMin time.Duration // default 5s
	GraceMax time.Duration // default 1h
	Timezone string        // IANA TZ; empty means local
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.GraceMin <= 0 {
		c.GraceMin = 5 * time.Second
	}
	if c.GraceMax <= c.GraceMin {
		c.GraceMax = time.Hour
	}
	return c
}

// Target is the execution context due callbacks are submitted onto.
// Submit must be safe to call from the timer goroutine.
type Target interface {
	Submit(name string, fn func(ctx context.Context) error) (*runner.Future, error)
}

// Callback is a task body. Errors are contained by the scheduler: logged,
// never propagated, and never affecting other tasks or future firings.
type Callback func(ctx context.Context) error

type task struct {
	name     string
	spec     string
	schedule cron.Schedule
	cb       Callback
	nextRun  time.Time
	running  bool
}

// TaskInfo is a point-in-time view of one registered task.
type TaskInfo struct {
	Name    string
	Spec    string
	NextRun time.Time
	Running bool
}
