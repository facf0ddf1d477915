// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"fmt"
	"io"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSourceEntries bounds the fetched-source cache when no size is configured.
const DefaultSourceEntries = 2048

type (
	// Context is the resolution state of a single build.
	Context struct {
		Logger *slog.Logger

		// Resolutions memoizes specifier → resolution. Fallback results are
		// never stored.
		Resolutions Map[string, Resolution]
		// BaseDirs maps a virtual module specifier to the directory its
		// source was loaded from: a local directory or a remote URL ending in "/".
		BaseDirs Map[string, string]
		// Versions maps "scopeAndName@constraint" to the selected version.
		Versions Map[string, string]
		// Indexes maps a package name to its published, non-retracted versions.
		Indexes Map[string, []string]
		// Packages caches per-version registry metadata.
		Packages Map[PackageKey, *PackageMeta]
		// Sources caches fetched remote source text by absolute URL.
		Sources *SourceCache
	}

	// SourceCache is a bounded URL → text cache. Eviction only costs a refetch.
	SourceCache struct {
		lru *lru.Cache[string, string]
	}
)

// New creates a Context. A nil logger discards output; sourceEntries <= 0
// selects DefaultSourceEntries.
func New(logger *slog.Logger, sourceEntries int) (*Context, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	sources, err := NewSourceCache(sourceEntries)
	if err != nil {
		return nil, err
	}
	return &Context{Logger: logger, Sources: sources}, nil
}

// NewSourceCache creates a source cache holding at most size entries.
func NewSourceCache(size int) (*SourceCache, error) {
	if size <= 0 {
		size = DefaultSourceEntries
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create source cache: %w", err)
	}
	return &SourceCache{lru: c}, nil
}

// Get returns the cached text for url.
func (s *SourceCache) Get(url string) (string, bool) {
	return s.lru.Get(url)
}

// Add stores text for url unless an entry is already present.
func (s *SourceCache) Add(url, text string) {
	s.lru.ContainsOrAdd(url, text)
}

// Len returns the number of cached entries.
func (s *SourceCache) Len() int {
	return s.lru.Len()
}
