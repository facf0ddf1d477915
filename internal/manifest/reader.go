// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
)

// DefaultSearchDepth is the number of parent directories Find climbs.
const DefaultSearchDepth = 10

// Reader finds and caches workspace manifests. It is safe for concurrent use.
type Reader struct {
	files  []string
	depth  int
	logger *slog.Logger

	// byPath caches parsed manifests. A nil entry records a malformed file.
	byPath cache.Map[string, *Manifest]
	// byDir caches directory → manifest path; "" records that no manifest
	// was found within the depth bound.
	byDir cache.Map[string, string]
}

// NewReader creates a reader looking for the given file names, in order, in
// each directory. depth <= 0 selects DefaultSearchDepth.
func NewReader(files []string, depth int, logger *slog.Logger) *Reader {
	if depth <= 0 {
		depth = DefaultSearchDepth
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{files: slices.Clone(files), depth: depth, logger: logger}
}

// Find returns the nearest manifest at or above startDir.
func (r *Reader) Find(startDir string) (*Manifest, bool) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, false
	}
	if p, ok := r.byDir.Load(dir); ok {
		return r.load(p)
	}

	found := ""
	cur := dir
	for range r.depth + 1 {
		if p := r.candidate(cur); p != "" {
			found = p
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	r.byDir.Store(dir, found)
	return r.load(found)
}

// candidate returns the first manifest in dir that parses, or "".
func (r *Reader) candidate(dir string) string {
	for _, name := range r.files {
		p := filepath.Join(dir, name)
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		if m, _ := r.load(p); m != nil {
			return p
		}
	}
	return ""
}

func (r *Reader) load(path string) (*Manifest, bool) {
	if path == "" {
		return nil, false
	}
	if m, ok := r.byPath.Load(path); ok {
		return m, m != nil
	}
	m, err := Parse(path)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, os.ErrNotExist) {
			level = slog.LevelDebug
		}
		r.logger.Log(context.Background(), level, "ignoring workspace manifest", "path", path, "error", err)
		m = nil
	}
	actual, _ := r.byPath.LoadOrStore(path, m)
	return actual, actual != nil
}
