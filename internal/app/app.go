// Package app assembles the services and owns their lifecycle: config,
// logging, history, render engine, runner, scheduler, transport, notifier,
// bot. Start order is storage-out, stop order is intake-first.
package app

import (
	"context"
	"time"

	"cloudrank/internal/bot"
	"cloudrank/internal/config"
	"cloudrank/internal/history"
	"cloudrank/internal/notifier"
	"cloudrank/internal/runner"
	rtsup "cloudrank/internal/runtime/supervisor"
	"cloudrank/internal/scheduler"
	"cloudrank/internal/timeutil"
	"cloudrank/internal/tokenizer"
	"cloudrank/internal/transport"
	"cloudrank/internal/transport/telegram"
	"cloudrank/internal/wordcloud"
	logx "cloudrank/pkg/logx"
)

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   *history.Store
	engine  *wordcloud.Engine
	run     *runner.Runner
	sched   *scheduler.Scheduler
	adapter transport.Adapter
	notif   *notifier.Service
	bot     *bot.Service

	updates chan transport.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logCfg(cfg))
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationField("history.busy_timeout", cfg.History.BusyTimeout)
	if err != nil {
		return nil, err
	}
	store, err := history.Open(history.Config{
		Path:        cfg.History.Path,
		BusyTimeout: busyTimeout,
	}, logSvc.Logger().With(logx.String("comp", "history")))
	if err != nil {
		return nil, err
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}
	engine, err := wordcloud.NewEngine(wordcloudOpts(cfg), dataDir,
		logSvc.Logger().With(logx.String("comp", "wordcloud")))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	run := runner.New(64, logSvc.Logger().With(logx.String("comp", "runner")))

	schedCfg, err := schedulerCfg(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	sched := scheduler.New(schedCfg, run, logSvc.Logger().With(logx.String("comp", "scheduler")))

	notif := notifier.New(notifier.Config{
		RatePerSec: cfg.Bot.SendRatePerSec,
	}, ad, logSvc.Logger().With(logx.String("comp", "notifier")))

	updates := make(chan transport.Update, 256)
	botSvc := bot.New(botCfgFrom(cfg, log), bot.Deps{
		History:   store,
		Engine:    engine,
		Scheduler: sched,
		Runner:    run,
		Notifier:  notif,
	}, updates, logSvc.Logger().With(logx.String("comp", "bot")))

	return &App{
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   store,
		engine:  engine,
		run:     run,
		sched:   sched,
		adapter: ad,
		notif:   notif,
		bot:     botSvc,
		updates: updates,
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.logs.Logger().With(logx.String("comp", "config")))

	a.run.Start(a.sup.Context())
	a.notif.Start(a.sup.Context())
	if err := a.bot.Start(a.sup.Context()); err != nil {
		return err
	}
	a.sched.Start()
	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.sup.Go("config.watch", a.cfgm.Watch)

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyReload(newCfg)
			}
		}
	})

	a.log.Info("started")
	return nil
}

// applyReload pushes the hot-reloadable parts of a new config into running
// services. Transport, history, and the render engine need a restart; say so
// instead of silently ignoring the change.
func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(logCfg(cfg))
	a.notif.Apply(notifier.Config{RatePerSec: cfg.Bot.SendRatePerSec})

	a.bot.Apply(botCfgFrom(cfg, a.log))
	a.log.Info("config applied; telegram/history/wordcloud changes need a restart")
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")

	// Intake first so nothing new arrives while the pipeline drains.
	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}
	a.sched.Stop(ctx)
	if err := a.bot.Stop(ctx); err != nil {
		a.log.Warn("bot stop", logx.Err(err))
	}
	a.run.Stop(ctx)
	a.notif.Stop(ctx)

	if a.sup != nil {
		a.sup.Cancel()
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = a.sup.Wait(wctx)
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("history close", logx.Err(err))
	}
	a.log.Info("stopped")
	return a.logs.Close()
}

func logCfg(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func wordcloudOpts(cfg *config.Config) wordcloud.Options {
	w := cfg.Wordcloud
	return wordcloud.Options{
		Width:       w.Width,
		Height:      w.Height,
		MaxWords:    w.MaxWords,
		Background:  w.Background,
		Colors:      w.Colors,
		Shape:       wordcloud.Shape(w.Shape),
		MinFontSize: w.MinFontSize,
		MaxFontSize: w.MaxFontSize,
		FontPath:    w.FontPath,
	}
}

func schedulerCfg(cfg *config.Config) (scheduler.Config, error) {
	poll, err := config.ParseDurationField("scheduler.poll_interval", cfg.Scheduler.PollInterval)
	if err != nil {
		return scheduler.Config{}, err
	}
	gmin, err := config.ParseDurationField("scheduler.grace_min", cfg.Scheduler.GraceMin)
	if err != nil {
		return scheduler.Config{}, err
	}
	gmax, err := config.ParseDurationField("scheduler.grace_max", cfg.Scheduler.GraceMax)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		PollInterval: poll,
		GraceMin:     gmin,
		GraceMax:     gmax,
		Timezone:     cfg.Scheduler.Timezone,
	}, nil
}

func botCfgFrom(cfg *config.Config, log logx.Logger) bot.Config {
	stopwords := tokenizer.LoadStopwords(cfg.Wordcloud.StopwordsFile)
	if cfg.Bot.DailyEnabled && cfg.Bot.DailyTime != "" {
		// A typo here silently falls back to midnight; warn up front.
		if _, _, err := timeutil.ParseHHMM(cfg.Bot.DailyTime); err != nil {
			log.Warn("bot.daily_time unparsable, daily task falls back to midnight",
				logx.String("daily_time", cfg.Bot.DailyTime), logx.Err(err))
		}
	}
	return bot.Config{
		EnabledGroups:         cfg.Bot.EnabledGroups,
		DailyTime:             cfg.Bot.DailyTime,
		DailyEnabled:          cfg.Bot.DailyEnabled,
		AutoEnabled:           cfg.Bot.AutoEnabled,
		GenerateIntervalHours: cfg.Bot.GenerateIntervalHours,
		QueryDays:             cfg.Bot.QueryDays,
		RankingEnabled:        cfg.Bot.RankingEnabled,
		RankingCount:          cfg.Bot.RankingCount,
		RankingMedals:         cfg.Bot.RankingMedals,
		RetentionDays:         cfg.History.RetentionDays,
		MinWordLength:         cfg.Wordcloud.MinWordLength,
		Stopwords:             stopwords,
	}
}
