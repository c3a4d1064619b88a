package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
telegram:
  token: "123:abc"
  poll_timeout: "10s"
logging:
  level: debug
  console: true
data_dir: ./data
history:
  path: ./data/history.db
  retention_days: 30
scheduler:
  poll_interval: "1s"
  timezone: "UTC"
wordcloud:
  width: 800
  height: 400
  shape: circle
bot:
  daily_enabled: true
  daily_time: "23:30"
  query_days: 1
  ranking_enabled: true
  ranking_count: 5
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Bot.DailyTime != "23:30" || !cfg.Bot.DailyEnabled {
		t.Fatalf("bot = %+v", cfg.Bot)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get() did not return the committed config")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, validYAML+"\nmystery_key: 1\n"))
	if _, err := m.Parse(); err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestParseRejectsInvalidConfigs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(string) string
		wantSub string
	}{
		{"missing token", func(s string) string {
			return strings.Replace(s, `token: "123:abc"`, `token: ""`, 1)
		}, "telegram.token"},
		{"bad duration", func(s string) string {
			return strings.Replace(s, `poll_timeout: "10s"`, `poll_timeout: "soon"`, 1)
		}, "poll_timeout"},
		{"bad shape", func(s string) string {
			return strings.Replace(s, "shape: circle", "shape: hexagon", 1)
		}, "shape"},
		{"negative query days", func(s string) string {
			return strings.Replace(s, "query_days: 1", "query_days: -2", 1)
		}, "query_days"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, tt.mutate(validYAML)))
			_, err := m.Parse()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	m := NewManager("unused.yaml")
	ch := m.Subscribe(1)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("received wrong config")
		}
	default:
		t.Fatal("no config delivered")
	}

	m.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Fatal("channel still open after Unsubscribe")
	}
}
