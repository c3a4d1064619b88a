// Package bot wires the chat side together: it records group messages into
// history, answers commands, and registers the scheduled render tasks.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloudrank/internal/history"
	"cloudrank/internal/notifier"
	"cloudrank/internal/runner"
	rtsup "cloudrank/internal/runtime/supervisor"
	"cloudrank/internal/scheduler"
	"cloudrank/internal/timeutil"
	"cloudrank/internal/transport"
	"cloudrank/internal/wordcloud"
	logx "cloudrank/pkg/logx"
)

type Config struct {
	// EnabledGroups lists chat IDs (decimal strings) that participate.
	// Empty disables recording and scheduled renders everywhere.
	EnabledGroups []string

	DailyTime    string // "HH:MM"
	DailyEnabled bool

	AutoEnabled           bool
	GenerateIntervalHours int

	// QueryDays is the default lookback for /cloud.
	QueryDays int

	RankingEnabled bool
	RankingCount   int
	RankingMedals  []string

	RetentionDays int

	MinWordLength int
	Stopwords     map[string]struct{}
}

func (c Config) withDefaults() Config {
	if c.QueryDays <= 0 {
		c.QueryDays = 1
	}
	if c.RankingCount <= 0 {
		c.RankingCount = 5
	}
	if len(c.RankingMedals) == 0 {
		c.RankingMedals = defaultMedals
	}
	if c.MinWordLength <= 0 {
		c.MinWordLength = 2
	}
	return c
}

// Deps are the collaborators the bot drives. All are required.
type Deps struct {
	History   *history.Store
	Engine    *wordcloud.Engine
	Scheduler *scheduler.Scheduler
	Runner    *runner.Runner
	Notifier  *notifier.Service
}

type Service struct {
	mu      sync.Mutex
	cfg     Config
	enabled map[int64]struct{}
	running bool

	deps    Deps
	log     logx.Logger
	updates <-chan transport.Update
	sup     *rtsup.Supervisor

	now func() time.Time
}

func New(cfg Config, deps Deps, updates <-chan transport.Update, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		deps:    deps,
		log:     log,
		updates: updates,
		now:     time.Now,
	}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	cfg = cfg.withDefaults()
	enabled := make(map[int64]struct{}, len(cfg.EnabledGroups))
	for _, g := range cfg.EnabledGroups {
		id, err := strconv.ParseInt(strings.TrimSpace(g), 10, 64)
		if err != nil {
			s.log.Warn("ignoring unparsable group id", logx.String("id", g))
			continue
		}
		enabled[id] = struct{}{}
	}
	s.cfg = cfg
	s.enabled = enabled
}

func (s *Service) groupEnabled(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.enabled[chatID]
	return ok
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.log.With(logx.String("comp", "bot"))))
	sup := s.sup
	s.mu.Unlock()

	if err := s.registerTasks(); err != nil {
		return err
	}

	sup.Go0("ingest", s.ingestLoop)
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()
	if !wasRunning {
		return nil
	}
	sup.Cancel()
	return sup.Wait(ctx)
}

func (s *Service) ingestLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-s.updates:
			if !ok {
				return
			}
			if up.Message == nil {
				continue
			}
			s.handleMessage(ctx, up.Message)
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, m *transport.Message) {
	if strings.HasPrefix(m.Text, "/") {
		s.handleCommand(ctx, m)
		return
	}
	if !m.IsGroup || !s.groupEnabled(m.ChatID) {
		return
	}
	err := s.deps.History.Append(ctx, history.Message{
		SessionID:  sessionID(m.ChatID),
		SenderID:   strconv.FormatInt(m.SenderID, 10),
		SenderName: m.SenderName,
		Text:       m.Text,
		Timestamp:  s.now(),
		IsGroup:    true,
	})
	if err != nil {
		s.log.Error("history append failed", logx.Int64("chat_id", m.ChatID), logx.Err(err))
	}
}

func (s *Service) handleCommand(ctx context.Context, m *transport.Message) {
	fields := strings.Fields(m.Text)
	if len(fields) == 0 {
		return
	}
	cmd := strings.ToLower(fields[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}

	if cmd == "/help" {
		s.sendText(ctx, m.ChatID, helpText)
		return
	}
	if !m.IsGroup || !s.groupEnabled(m.ChatID) {
		return
	}

	cfg := s.config()
	now := s.now()
	chatID := m.ChatID

	switch cmd {
	case "/cloud":
		days := cfg.QueryDays
		if len(fields) > 1 {
			if n, err := strconv.Atoi(fields[1]); err == nil && n >= 1 && n <= 30 {
				days = n
			}
		}
		since := now.Add(-time.Duration(days) * 24 * time.Hour)
		title := fmt.Sprintf("Word cloud, last %dd", days)
		s.submitRender(ctx, "cmd.cloud", chatID, since, title, false)
	case "/today":
		s.submitRender(ctx, "cmd.today", chatID, timeutil.DayStart(now), "Today's word cloud", cfg.RankingEnabled)
	case "/rank":
		s.submitRank(ctx, "cmd.rank", chatID, timeutil.DayStart(now))
	}
}

// submitRender pushes the render onto the shared execution context so
// commands and scheduled tasks serialize through the same worker.
func (s *Service) submitRender(ctx context.Context, name string, chatID int64, since time.Time, title string, withRanking bool) {
	_, err := s.deps.Runner.Submit(name, func(rctx context.Context) error {
		return s.renderAndSend(rctx, chatID, since, title, withRanking)
	})
	if err != nil {
		s.log.Warn("render submission rejected", logx.String("name", name), logx.Err(err))
		s.sendText(ctx, chatID, "Busy right now, try again in a moment.")
	}
}

func (s *Service) submitRank(ctx context.Context, name string, chatID int64, since time.Time) {
	_, err := s.deps.Runner.Submit(name, func(rctx context.Context) error {
		return s.sendRanking(rctx, chatID, since)
	})
	if err != nil {
		s.log.Warn("ranking submission rejected", logx.String("name", name), logx.Err(err))
		s.sendText(ctx, chatID, "Busy right now, try again in a moment.")
	}
}

func (s *Service) sendText(ctx context.Context, chatID int64, text string) {
	err := s.deps.Notifier.Enqueue(ctx, notifier.Delivery{
		Target: transport.ChatTarget{ChatID: chatID},
		Text:   text,
	})
	if err != nil {
		s.log.Warn("outbound text dropped", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}

func sessionID(chatID int64) string {
	return fmt.Sprintf("telegram:group:%d", chatID)
}

func chatFromSession(session string) (int64, bool) {
	i := strings.LastIndexByte(session, ':')
	if i < 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(session[i+1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

const helpText = `Word cloud bot:
/cloud [days] - word cloud over the last N days (default from config)
/today - today's word cloud with the activity ranking
/rank - today's activity ranking
/help - this message`
