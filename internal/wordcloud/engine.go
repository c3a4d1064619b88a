package wordcloud

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	logx "cloudrank/pkg/logx"
)

const (
	contendedWaitTotal = 5 * time.Second
	contendedWaitStep  = 500 * time.Millisecond
)

// Engine renders word clouds to PNG artifacts under a data directory.
//
// Renders for distinct keys proceed fully in parallel; each draw builds its
// own font faces. The per-key lock exists to deduplicate same-key requests
// so an artifact is rendered at most once per (identity, timestamp).
type Engine struct {
	opts    Options
	dataDir string
	log     logx.Logger

	locks *lockRegistry

	sfnt *opentype.Font // nil when falling back to the bitmap font
	mask maskFunc

	// wait knobs for the contended path; fixed except in tests.
	waitTotal time.Duration
	waitStep  time.Duration

	now func() time.Time
}

func NewEngine(opts Options, dataDir string, log logx.Logger) (*Engine, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("wordcloud: data dir is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	opts = opts.withDefaults()

	e := &Engine{
		opts:      opts,
		dataDir:   dataDir,
		log:       log,
		locks:     newLockRegistry(),
		mask:      maskFor(opts.Shape),
		waitTotal: contendedWaitTotal,
		waitStep:  contendedWaitStep,
		now:       time.Now,
	}

	ttf := goregular.TTF
	if opts.FontPath != "" {
		b, err := os.ReadFile(opts.FontPath)
		if err != nil {
			log.Warn("font file unreadable, using built-in font", logx.String("path", opts.FontPath), logx.Err(err))
		} else {
			ttf = b
		}
	}
	sfnt, err := opentype.Parse(ttf)
	if err != nil {
		log.Warn("font parse failed, using bitmap fallback", logx.Err(err))
	} else {
		e.sfnt = sfnt
	}
	return e, nil
}

// Render produces the artifact for (identity, ts) from the given frequency
// map and returns its path. A zero ts means now.
//
// Concurrent calls with the same identity+timestamp never render twice: the
// first caller draws, later callers reuse the artifact or wait for it, and
// give up with ErrContended after the wait bound.
func (e *Engine) Render(freqs map[string]int, identity string, ts time.Time, title string) (string, error) {
	if !hasWords(freqs) {
		return "", ErrNoWords
	}
	if ts.IsZero() {
		ts = e.now()
	}

	path := ArtifactPath(e.dataDir, identity, ts)
	key := renderKey(identity, ts)

	lk := e.locks.get(key)
	if !lk.TryLock() {
		e.log.Warn("render already in flight for key, not re-rendering", logx.String("key", key))
		return e.awaitArtifact(key, path)
	}
	defer lk.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("wordcloud: create artifact dir: %w", err)
	}

	start := e.now()
	img := e.draw(freqs, ts, title)

	// Write via temp file + rename so a concurrent waiter never observes a
	// half-written artifact at the deterministic path.
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("wordcloud: open temp artifact: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("wordcloud: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("wordcloud: close temp artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("wordcloud: publish artifact: %w", err)
	}

	e.log.Info("wordcloud rendered",
		logx.String("identity", identity),
		logx.String("path", path),
		logx.Int("words", len(freqs)),
		logx.Duration("took", e.now().Sub(start)))
	return path, nil
}

// awaitArtifact is the loser's side of a same-key collision: reuse the
// artifact if it is already there, otherwise poll for it up to the bound.
func (e *Engine) awaitArtifact(key, path string) (string, error) {
	if fileExists(path) {
		e.log.Info("reusing just-rendered artifact", logx.String("path", path))
		return path, nil
	}
	deadline := e.now().Add(e.waitTotal)
	for e.now().Before(deadline) {
		time.Sleep(e.waitStep)
		if fileExists(path) {
			e.log.Info("artifact appeared after waiting", logx.String("path", path))
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrContended, key)
}

// renderKey is derived from the same normalized identity as the artifact
// path: identities that collide on a path must also share a lock.
func renderKey(identity string, ts time.Time) string {
	return fmt.Sprintf("wordcloud_%s_%d", SafeID(identity), ts.Unix())
}

func hasWords(freqs map[string]int) bool {
	for _, n := range freqs {
		if n > 0 {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
