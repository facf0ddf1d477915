// SPDX-License-Identifier: MPL-2.0

// Package watch rebuilds on source changes.
//
// A Watcher monitors every non-ignored directory under a root and invokes a
// callback after a debounce period with the set of changed files that match
// its glob patterns. Events within the debounce window coalesce into one
// callback, and a callback that is still running causes the next one to be
// rescheduled rather than run concurrently.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
const DefaultDebounce = 200 * time.Millisecond

var (
	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watch: Run called more than once")

	// defaultPatterns select module sources and the manifests that shape
	// their resolution.
	defaultPatterns = []string{
		"**/*.{ts,tsx,mts,cts,js,jsx,mjs,cjs}",
		"**/{deno.json,deno.jsonc,package.json,import_map.json}",
	}

	// defaultIgnores is always merged with Config.Ignore.
	defaultIgnores = []string{
		"**/.git/**",
		"**/node_modules/**",
		"**/*.swp",
		"**/*~",
		"**/.DS_Store",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Root is the directory to watch. Defaults to the working directory.
		Root string

		// Patterns are doublestar globs, relative to Root, selecting the files
		// whose changes trigger a callback. Empty selects DefaultPatterns.
		Patterns []string

		// Ignore are extra doublestar globs that never trigger a callback,
		// typically the build output.
		Ignore []string

		Debounce time.Duration

		// ClearScreen writes an ANSI clear sequence to Stdout before each
		// callback.
		ClearScreen bool
		Stdout      io.Writer

		// OnChange receives the changed paths relative to Root, sorted.
		OnChange func(ctx context.Context, changed []string) error

		Logger *slog.Logger
	}

	// Watcher monitors a directory tree. Run must be called exactly once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		patterns []string
		ignores  []string
		debounce time.Duration
		root     string
		logger   *slog.Logger
		started  atomic.Bool
	}
)

// DefaultPatterns returns a copy of the patterns used when Config.Patterns
// is empty.
func DefaultPatterns() []string { return slices.Clone(defaultPatterns) }

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string { return slices.Clone(defaultIgnores) }

// New validates cfg, creates the fsnotify watcher and registers every
// non-ignored directory under Root.
func New(cfg Config) (*Watcher, error) {
	root := cfg.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		root = wd
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	if err := validatePatterns(patterns, "watch"); err != nil {
		return nil, err
	}
	if err := validatePatterns(cfg.Ignore, "ignore"); err != nil {
		return nil, err
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		patterns: slices.Clone(patterns),
		ignores:  append(slices.Clone(defaultIgnores), cfg.Ignore...),
		debounce: debounce,
		root:     absRoot,
		logger:   logger,
	}
	if err := w.addDirectories(); err != nil {
		_ = fsw.Close() // best-effort cleanup
		return nil, err
	}
	return w, nil
}

// Root returns the absolute directory being watched.
func (w *Watcher) Root() string { return w.root }

// Run processes events until ctx is cancelled. It returns nil on
// cancellation and an error when the underlying watcher fails for good.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire may run after cancellation because it is scheduled by
	// time.AfterFunc, so it re-checks ctx.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("rebuild still running, rescheduling")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.ClearScreen {
			fmt.Fprint(w.cfg.Stdout, "\033[2J\033[H")
		}
		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				w.logger.Warn("rebuild callback failed", "error", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close fsnotify watcher", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: fsnotify event channel closed unexpectedly")
			}
			rel, err := filepath.Rel(w.root, evt.Name)
			if err != nil {
				rel = evt.Name
			}
			rel = filepath.ToSlash(rel)
			if w.isIgnored(rel) {
				continue
			}
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name)
			}
			if !w.matches(rel) {
				continue
			}

			w.logger.Debug("source changed", "path", rel, "op", evt.Op.String())
			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// addDirectories registers every non-ignored directory under the root.
// Pattern filtering happens when events arrive.
func (w *Watcher) addDirectories() error {
	walkErr := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "error", err)
			return nil //nolint:nilerr // skip inaccessible paths
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil //nolint:nilerr // skip paths that cannot be made relative
		}
		if rel != "." && w.isIgnoredDir(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, err)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// maybeAddDir extends the watch to directories created after startup.
func (w *Watcher) maybeAddDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || w.isIgnoredDir(filepath.ToSlash(rel)) {
		return
	}
	if err := w.fsw.Add(path); err != nil {
		w.logger.Warn("add new directory", "path", path, "error", err)
	}
}

func (w *Watcher) isIgnoredDir(rel string) bool {
	return w.isIgnored(rel) || w.isIgnored(rel+"/")
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matches(rel string) bool {
	return matchAny(w.patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// isFatalFsnotifyError reports errors that leave the watcher unusable.
func isFatalFsnotifyError(err error) bool {
	return slices.ContainsFunc(fatalErrnos, func(target error) bool {
		return errors.Is(err, target)
	})
}

func validatePatterns(patterns []string, label string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, doublestar.ErrBadPattern)
		}
	}
	return nil
}
