package telegram

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestSplitTextShort(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %v", got)
	}
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 60)
	got := splitText(text, 100)
	if len(got) != 2 {
		t.Fatalf("chunks = %d, want 2: %q", len(got), got)
	}
	if got[0] != strings.Repeat("a", 60) {
		t.Fatalf("first chunk = %q", got[0])
	}
	if got[1] != strings.Repeat("b", 60) {
		t.Fatalf("second chunk = %q", got[1])
	}
}

func TestSplitTextCoversEverything(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 345)
	var total int
	for _, c := range splitText(text, 100) {
		if len(c) > 100 {
			t.Fatalf("chunk exceeds limit: %d", len(c))
		}
		total += len(c)
	}
	if total != 345 {
		t.Fatalf("total = %d, want 345", total)
	}
}

func TestSenderName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		u    tele.User
		want string
	}{
		{tele.User{FirstName: "Ada", LastName: "L"}, "Ada L"},
		{tele.User{FirstName: "Ada"}, "Ada"},
		{tele.User{Username: "ada42"}, "ada42"},
	}
	for _, tt := range tests {
		if got := senderName(&tt.u); got != tt.want {
			t.Fatalf("senderName(%+v) = %q, want %q", tt.u, got, tt.want)
		}
	}
}

func TestIsGroupChat(t *testing.T) {
	t.Parallel()
	if isGroupChat(&tele.Chat{Type: tele.ChatPrivate}) {
		t.Fatal("private chat reported as group")
	}
	if !isGroupChat(&tele.Chat{Type: tele.ChatSuperGroup}) {
		t.Fatal("supergroup not reported as group")
	}
	if isGroupChat(nil) {
		t.Fatal("nil chat reported as group")
	}
}
