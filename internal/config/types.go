package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// DataDir is where rendered artifacts land (images/<chat>/...).
	DataDir string `json:"data_dir"`

	History   HistoryConfig   `json:"history"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Wordcloud WordcloudConfig `json:"wordcloud"`
	Bot       BotConfig       `json:"bot"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type HistoryConfig struct {
	Path          string `json:"path"`
	RetentionDays int    `json:"retention_days,omitempty"` // 0 keeps everything
	BusyTimeout   string `json:"busy_timeout,omitempty"`   // Go duration string
}

// SchedulerConfig controls the task trigger loop.
//
// All durations are Go duration strings. GraceMin/GraceMax bound the lateness
// window: firing later than grace_min is logged as late, later than grace_max
// is logged as anomalous (the task still fires).
type SchedulerConfig struct {
	PollInterval string `json:"poll_interval,omitempty"`
	GraceMin     string `json:"grace_min,omitempty"`
	GraceMax     string `json:"grace_max,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
}

type WordcloudConfig struct {
	Width      int      `json:"width,omitempty"`
	Height     int      `json:"height,omitempty"`
	MaxWords   int      `json:"max_words,omitempty"`
	Background string   `json:"background,omitempty"`
	Colors     []string `json:"colors,omitempty"`
	Shape      string   `json:"shape,omitempty"` // rectangle|circle|diamond|triangle

	MinFontSize int `json:"min_font_size,omitempty"`
	MaxFontSize int `json:"max_font_size,omitempty"`

	FontPath      string `json:"font_path,omitempty"`
	MinWordLength int    `json:"min_word_length,omitempty"`
	StopwordsFile string `json:"stopwords_file,omitempty"`
}

// BotConfig controls which chats participate and when clouds are produced.
type BotConfig struct {
	// EnabledGroups lists the chat IDs that record history and receive
	// scheduled renders. An empty list turns the feature off everywhere.
	EnabledGroups []string `json:"enabled_groups,omitempty"`

	// DailyTime is "HH:MM" local to scheduler.timezone.
	DailyTime    string `json:"daily_time,omitempty"`
	DailyEnabled bool   `json:"daily_enabled"`

	// AutoEnabled adds a repeating render every GenerateIntervalHours.
	AutoEnabled           bool `json:"auto_enabled"`
	GenerateIntervalHours int  `json:"generate_interval_hours,omitempty"`

	// QueryDays is how far back on-demand and scheduled clouds look.
	QueryDays int `json:"query_days,omitempty"`

	RankingEnabled bool     `json:"ranking_enabled"`
	RankingCount   int      `json:"ranking_count,omitempty"`
	RankingMedals  []string `json:"ranking_medals,omitempty"`

	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

// Validate rejects configs that cannot possibly run. Defaults are applied by
// the consuming services, not here.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required")
	}
	if strings.TrimSpace(c.History.Path) == "" {
		return fmt.Errorf("history.path is required")
	}
	for _, field := range []struct{ name, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"history.busy_timeout", c.History.BusyTimeout},
		{"scheduler.poll_interval", c.Scheduler.PollInterval},
		{"scheduler.grace_min", c.Scheduler.GraceMin},
		{"scheduler.grace_max", c.Scheduler.GraceMax},
	} {
		if _, err := ParseDurationField(field.name, field.raw); err != nil {
			return err
		}
	}
	if c.Bot.GenerateIntervalHours < 0 || c.Bot.GenerateIntervalHours > 23 {
		return fmt.Errorf("bot.generate_interval_hours must be in [0, 23]")
	}
	if c.Bot.QueryDays < 0 {
		return fmt.Errorf("bot.query_days must be >= 0")
	}
	if c.History.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(c.Wordcloud.Shape)) {
	case "", "rectangle", "circle", "diamond", "triangle":
	default:
		return fmt.Errorf("wordcloud.shape %q is not recognized", c.Wordcloud.Shape)
	}
	return nil
}
