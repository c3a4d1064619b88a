package timeutil

import (
	"testing"
	"time"
)

func TestTimeToCron(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "evening", in: "23:30", want: "30 23 * * *"},
		{name: "no leading zeros", in: "9:5", want: "5 9 * * *"},
		{name: "midnight", in: "00:00", want: "0 0 * * *"},
		{name: "padded", in: " 08:15 ", want: "15 8 * * *"},
		{name: "hour out of range", in: "25:00", want: DefaultCron},
		{name: "minute out of range", in: "10:61", want: DefaultCron},
		{name: "missing separator", in: "2330", want: DefaultCron},
		{name: "garbage", in: "ab:cd", want: DefaultCron},
		{name: "empty", in: "", want: DefaultCron},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeToCron(tt.in); got != tt.want {
				t.Fatalf("TimeToCron(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseHHMMInvalid(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"24:00", "-1:30", "12", "12:30:45", "12:"} {
		if _, _, err := ParseHHMM(in); err == nil {
			t.Fatalf("ParseHHMM(%q): expected error", in)
		}
	}
}

func TestDayStart(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("X", 7*3600)
	in := time.Date(2025, 3, 14, 15, 9, 26, 535, loc)
	got := DayStart(in)
	want := time.Date(2025, 3, 14, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("DayStart = %v, want %v", got, want)
	}
}
