package wordcloud

import (
	"path/filepath"
	"strings"
	"time"

	"cloudrank/internal/timeutil"
)

// SafeID maps a session identity onto a filesystem-safe directory name.
func SafeID(identity string) string {
	r := strings.NewReplacer("/", "_", ":", "_", "\\", "_")
	return r.Replace(identity)
}

// ArtifactPath is the deterministic output path for an (identity, timestamp)
// render: <dataDir>/images/<safeID>/wordcloud_<stamp>.png. Both requesters
// racing on the same key compute the same path, which is what allows the
// loser to reuse the winner's artifact.
func ArtifactPath(dataDir, identity string, ts time.Time) string {
	return filepath.Join(dataDir, "images", SafeID(identity), "wordcloud_"+timeutil.Stamp(ts)+".png")
}
