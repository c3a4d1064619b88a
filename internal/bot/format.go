package bot

import (
	"fmt"
	"strings"

	"cloudrank/internal/history"
)

var defaultMedals = []string{"🥇", "🥈", "🥉", "🏅"}

// FormatRanking renders the activity leaderboard. Ranks beyond the medal
// list reuse its last entry so every row still gets a marker.
func FormatRanking(rows []history.SenderCount, medals []string) string {
	if len(medals) == 0 {
		medals = defaultMedals
	}
	var b strings.Builder
	b.WriteString("📊 Most active today:\n")
	for i, r := range rows {
		medal := medals[len(medals)-1]
		if i < len(medals) {
			medal = medals[i]
		}
		name := r.SenderName
		if name == "" {
			name = r.SenderID
		}
		fmt.Fprintf(&b, "%s %s: %d messages\n", medal, name, r.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}
