package bot

import (
	"strings"
	"testing"

	"cloudrank/internal/history"
)

func TestFormatRankingMedalsAndPadding(t *testing.T) {
	t.Parallel()
	rows := []history.SenderCount{
		{SenderID: "1", SenderName: "Ada", Count: 12},
		{SenderID: "2", SenderName: "Bob", Count: 9},
		{SenderID: "3", SenderName: "Cleo", Count: 5},
		{SenderID: "4", SenderName: "Dan", Count: 4},
		{SenderID: "5", SenderName: "Eve", Count: 1},
	}
	got := FormatRanking(rows, nil)
	lines := strings.Split(got, "\n")
	if len(lines) != 6 {
		t.Fatalf("lines = %d, want header + 5 rows:\n%s", len(lines), got)
	}
	want := []string{
		"🥇 Ada: 12 messages",
		"🥈 Bob: 9 messages",
		"🥉 Cleo: 5 messages",
		"🏅 Dan: 4 messages",
		"🏅 Eve: 1 messages", // ranks past the medal list reuse the last medal
	}
	for i, w := range want {
		if lines[i+1] != w {
			t.Fatalf("line %d = %q, want %q", i+1, lines[i+1], w)
		}
	}
}

func TestFormatRankingFallsBackToSenderID(t *testing.T) {
	t.Parallel()
	got := FormatRanking([]history.SenderCount{{SenderID: "42", Count: 2}}, []string{"*"})
	if !strings.Contains(got, "* 42: 2 messages") {
		t.Fatalf("got %q", got)
	}
}
