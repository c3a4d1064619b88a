package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloudrank/internal/timeutil"
	logx "cloudrank/pkg/logx"
)

const (
	taskDaily = "daily_wordcloud"
	taskAuto  = "auto_wordcloud"
	taskPrune = "history_prune"
)

// registerTasks installs the scheduled work derived from config. Called once
// on Start; config reloads re-register through Apply followed by a restart
// of the app layer.
func (s *Service) registerTasks() error {
	cfg := s.config()

	if cfg.DailyEnabled {
		spec := timeutil.TimeToCron(cfg.DailyTime)
		err := s.deps.Scheduler.Register(taskDaily, spec, func(ctx context.Context) error {
			now := s.now()
			return s.renderActiveGroups(ctx, timeutil.DayStart(now), "Today's word cloud", cfg.RankingEnabled)
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", taskDaily, err)
		}
		s.log.Info("daily wordcloud scheduled", logx.String("spec", spec))
	}

	if cfg.AutoEnabled && cfg.GenerateIntervalHours > 0 {
		spec := fmt.Sprintf("0 */%d * * *", cfg.GenerateIntervalHours)
		window := time.Duration(cfg.GenerateIntervalHours) * time.Hour
		title := fmt.Sprintf("Word cloud, last %dh", cfg.GenerateIntervalHours)
		err := s.deps.Scheduler.Register(taskAuto, spec, func(ctx context.Context) error {
			return s.renderActiveGroups(ctx, s.now().Add(-window), title, false)
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", taskAuto, err)
		}
		s.log.Info("interval wordcloud scheduled", logx.String("spec", spec))
	}

	if cfg.RetentionDays > 0 {
		retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
		err := s.deps.Scheduler.Register(taskPrune, "30 4 * * *", func(ctx context.Context) error {
			_, err := s.deps.History.PruneBefore(ctx, s.now().Add(-retention))
			return err
		})
		if err != nil {
			return fmt.Errorf("register %s: %w", taskPrune, err)
		}
	}
	return nil
}

// renderActiveGroups fans one scheduled trigger out to every enabled group
// with traffic in the window. One failing group does not stop the rest.
func (s *Service) renderActiveGroups(ctx context.Context, since time.Time, title string, withRanking bool) error {
	sessions, err := s.deps.History.ActiveSessions(ctx, since, true)
	if err != nil {
		return fmt.Errorf("active sessions: %w", err)
	}

	var errs []error
	for _, session := range sessions {
		chatID, ok := chatFromSession(session)
		if !ok {
			s.log.Warn("skipping unparsable session", logx.String("session", session))
			continue
		}
		if !s.groupEnabled(chatID) {
			continue
		}
		if err := s.renderAndSend(ctx, chatID, since, title, withRanking); err != nil {
			s.log.Error("scheduled render failed",
				logx.String("session", session), logx.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
