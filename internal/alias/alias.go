// SPDX-License-Identifier: MPL-2.0

// Package alias maps workspace aliases ("@/utils", "~/components/x", "#db")
// through the nearest workspace manifest's import table.
package alias

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/shuliangfu/esbuild-sub001/internal/manifest"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

// scriptExts are tried, in order, when an alias target names a file without
// its extension.
var scriptExts = []string{".ts", ".tsx"}

type (
	// Resolver resolves aliases. It never returns an error: a miss means the
	// next resolver should try.
	Resolver struct {
		manifests *manifest.Reader
	}

	// Result is a successful alias match. Exactly one of Location (a local
	// file) or Rewritten (an opaque package reference to resolve again) is set.
	Result struct {
		Location  specifier.Location
		Rewritten string
		// Key is the manifest key that matched.
		Key      string
		Manifest *manifest.Manifest
	}
)

// New creates a resolver reading manifests through r.
func New(r *manifest.Reader) *Resolver {
	return &Resolver{manifests: r}
}

// Resolve maps spec through the manifest nearest to startDir. Keys are tried
// from longest to shortest. A target that points into the workspace but
// names no existing file is skipped in favor of shorter keys.
func (r *Resolver) Resolve(spec, startDir string) (Result, bool) {
	m, ok := r.manifests.Find(startDir)
	if !ok {
		return Result{}, false
	}

	for _, key := range m.Keys() {
		target, ok := Match(key, m.Imports[key], spec)
		if !ok {
			continue
		}
		if !isLocalTarget(target) {
			return Result{Rewritten: target, Key: key, Manifest: m}, true
		}
		if p, ok := existingFile(localPath(m.Dir, target)); ok {
			return Result{Location: specifier.File(p), Key: key, Manifest: m}, true
		}
	}
	return Result{}, false
}

// Match applies a single import-table entry to spec and returns the
// substituted target.
//
// A key containing "*" matches any spec with the same prefix and suffix, and
// the captured text replaces the "*" in target. A key ending in "/" matches
// by prefix. Any other key matches spec exactly or as a path prefix ending at
// a "/" boundary.
func Match(key, target, spec string) (string, bool) {
	if prefix, suffix, wild := strings.Cut(key, "*"); wild {
		if len(spec) < len(prefix)+len(suffix) || !strings.HasPrefix(spec, prefix) || !strings.HasSuffix(spec, suffix) {
			return "", false
		}
		capture := spec[len(prefix) : len(spec)-len(suffix)]
		return strings.Replace(target, "*", capture, 1), true
	}

	if strings.HasSuffix(key, "/") {
		if !strings.HasPrefix(spec, key) {
			return "", false
		}
		return joinTarget(target, spec[len(key):]), true
	}

	if spec == key {
		return target, true
	}
	if strings.HasPrefix(spec, key+"/") {
		return joinTarget(target, spec[len(key)+1:]), true
	}
	return "", false
}

func joinTarget(target, rest string) string {
	if rest == "" {
		return target
	}
	return strings.TrimSuffix(target, "/") + "/" + strings.TrimPrefix(rest, "/")
}

func isLocalTarget(target string) bool {
	return specifier.IsRelative(target) || specifier.Classify(target) == specifier.KindAbsolute
}

func localPath(dir, target string) string {
	target = strings.TrimPrefix(target, "file://")
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Join(dir, filepath.FromSlash(target))
}

// existingFile returns p, or p with a script extension appended, if it
// names a regular file.
func existingFile(p string) (string, bool) {
	if isFile(p) {
		return p, true
	}
	for _, ext := range scriptExts {
		if isFile(p + ext) {
			return p + ext, true
		}
	}
	return "", false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
