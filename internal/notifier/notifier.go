// Package notifier is the outbound send pipeline: a bounded queue drained by
// workers through a token-bucket rate limit, with retry on transient send
// failures. Photo deliveries degrade to text when the upload keeps failing.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	rtsup "cloudrank/internal/runtime/supervisor"
	"cloudrank/internal/transport"
	logx "cloudrank/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

// Delivery is one outbound item. PhotoPath, when set, sends the file with
// Text as caption; otherwise Text goes out as a plain message.
type Delivery struct {
	Target    transport.ChatTarget
	Text      string
	PhotoPath string
}

type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter transport.Adapter

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	sendWG    sync.WaitGroup

	queue    chan Delivery
	sup      *rtsup.Supervisor
	stopDone chan struct{} // non-nil while stopping
}

func New(cfg Config, adapter transport.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	s.cfg = cfg
	// Burst equals the per-second rate so short spikes don't stall workers.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
	}
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan Delivery, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log.With(logx.String("comp", "notifier"))),
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		sup.Go0(fmt.Sprintf("worker.%d", i), func(c context.Context) {
			s.workerLoop(c, q)
		})
	}
}

// Stop blocks new deliveries and drains the queue best-effort until ctx's
// deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	s.accepting = false
	s.mu.Unlock()

	go func() {
		defer close(done)
		// In-flight enqueues first, then close so workers drain and exit.
		s.sendWG.Wait()
		close(q)
		_ = sup.Wait(context.Background())

		s.mu.Lock()
		s.queue = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sup.Cancel()
	}
}

// Enqueue hands a delivery to the pipeline. It never blocks; a full queue
// returns ErrQueueFull.
func (s *Service) Enqueue(ctx context.Context, d Delivery) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- d:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, d)
		}
	}
}

func (s *Service) deliver(ctx context.Context, d Delivery) {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	ad := s.adapter
	s.mu.Unlock()

	if ad == nil || (d.Text == "" && d.PhotoPath == "") {
		return
	}

	maxAttempts := 1 + cfg.RetryMax
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}

		callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		var err error
		if d.PhotoPath != "" {
			err = ad.SendPhoto(callCtx, d.Target, d.PhotoPath, d.Text)
		} else {
			err = ad.SendText(callCtx, d.Target, d.Text, nil)
		}
		cancel()
		if err == nil {
			return
		}
		lastErr = err
		s.log.Debug("delivery attempt failed",
			logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", maxAttempts))

		if attempt >= maxAttempts {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		}
	}

	// Photo uploads can fail when text still gets through (file too big,
	// artifact gone); fall back so the chat at least hears something.
	if d.PhotoPath != "" && d.Text != "" {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := ad.SendText(callCtx, d.Target, d.Text, nil)
		cancel()
		if err == nil {
			s.log.Warn("photo delivery degraded to text",
				logx.String("path", d.PhotoPath), logx.Err(lastErr))
			return
		}
	}
	s.log.Error("delivery failed",
		logx.Int64("chat_id", d.Target.ChatID), logx.Err(lastErr))
}

// retryDelay is exponential backoff with 0.7..1.3 jitter, capped by config.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	if d < 0 {
		d = 0
	}
	return d
}
