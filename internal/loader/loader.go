// SPDX-License-Identifier: MPL-2.0

// Package loader turns resolved locations into module source text.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
	"github.com/shuliangfu/esbuild-sub001/internal/protocol"
	"github.com/shuliangfu/esbuild-sub001/internal/registry"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

const (
	// SyntaxTS is TypeScript.
	SyntaxTS Syntax = "ts"
	// SyntaxTSX is TypeScript with JSX.
	SyntaxTSX Syntax = "tsx"
	// SyntaxJS is JavaScript.
	SyntaxJS Syntax = "js"
	// SyntaxJSX is JavaScript with JSX.
	SyntaxJSX Syntax = "jsx"
)

var (
	// ErrNoSource is reported for virtual modules with no known source.
	ErrNoSource = errors.New("no source available")
	// ErrInvalidUTF8 is reported for sources that are not valid UTF-8.
	ErrInvalidUTF8 = errors.New("source is not valid UTF-8")
)

type (
	// Syntax is the source language of a module.
	Syntax string

	// Module is loaded source text.
	Module struct {
		Contents string
		Syntax   Syntax
		// ResolveDir is the directory relative imports of a local module are
		// resolved against. It is empty for virtual modules.
		ResolveDir string
		// URL is the remote address the source was fetched from.
		URL string
		// Warning is set when the module could not be loaded and Contents is
		// an empty placeholder.
		Warning error
	}

	// Loader loads modules for one build.
	Loader struct {
		cache    *cache.Context
		protocol *protocol.Resolver
		registry *registry.Client
	}
)

// SyntaxFor classifies a path by extension, defaulting to TypeScript.
func SyntaxFor(p string) Syntax {
	if i := strings.IndexAny(p, "?#"); i >= 0 && strings.Contains(p, "://") {
		p = p[:i]
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".tsx":
		return SyntaxTSX
	case ".jsx":
		return SyntaxJSX
	case ".js", ".mjs", ".cjs":
		return SyntaxJS
	default:
		return SyntaxTS
	}
}

// New creates a loader that reuses the resolutions and registry client of pr.
func New(cc *cache.Context, pr *protocol.Resolver) *Loader {
	return &Loader{cache: cc, protocol: pr, registry: pr.Registry()}
}

// Load returns the source of loc. It never fails: an unreadable module is
// returned empty with Warning set so that one broken dependency surfaces as
// a diagnostic instead of aborting the build.
func (l *Loader) Load(ctx context.Context, loc specifier.Location) Module {
	switch loc.Kind {
	case specifier.LocalFile:
		return l.loadFile(loc.Path)
	case specifier.Virtual:
		return l.loadVirtual(ctx, loc.Specifier)
	default:
		return degraded(SyntaxTS, fmt.Errorf("unknown location %v", loc))
	}
}

func (l *Loader) loadFile(p string) Module {
	syntax := SyntaxFor(p)
	data, err := os.ReadFile(p)
	if err != nil {
		return degraded(syntax, fmt.Errorf("read %s: %w", p, err))
	}
	if !utf8.Valid(data) {
		return degraded(syntax, fmt.Errorf("%s: %w", p, ErrInvalidUTF8))
	}
	return Module{Contents: string(data), Syntax: syntax, ResolveDir: filepath.Dir(p)}
}

func (l *Loader) loadVirtual(ctx context.Context, spec string) Module {
	u, err := l.sourceURL(ctx, spec)
	if err != nil {
		l.cache.Logger.Warn("module unavailable, using an empty module", "specifier", spec, "error", err)
		return degraded(SyntaxFor(spec), err)
	}

	syntax := SyntaxFor(u)
	var text string
	if name, version, filePath, ok := l.registry.ParseFileURL(u); ok {
		text, err = l.registry.FetchSource(ctx, name, version, filePath)
	} else {
		text, err = l.registry.FetchURL(ctx, u)
	}
	if err != nil {
		l.cache.Logger.Warn("module unavailable, using an empty module", "specifier", spec, "url", u, "error", err)
		return degraded(syntax, err)
	}
	if !utf8.ValidString(text) {
		return degraded(syntax, fmt.Errorf("%s: %w", u, ErrInvalidUTF8))
	}

	l.cache.BaseDirs.Store(spec, urlDir(u))
	return Module{Contents: text, Syntax: syntax, URL: u}
}

// sourceURL finds where the source of a virtual module lives: a URL
// recorded during resolution, the specifier itself when it is a URL, or a
// fresh registry lookup for jsr specifiers.
func (l *Loader) sourceURL(ctx context.Context, spec string) (string, error) {
	if u, ok := l.protocol.ConcreteURL(spec); ok {
		return u, nil
	}
	if specifier.Classify(spec) == specifier.KindURL {
		return spec, nil
	}
	if scheme, _, ok := specifier.SplitScheme(spec); ok && scheme == "jsr" {
		pkg, err := specifier.ParsePackage(spec)
		if err != nil {
			return "", err
		}
		ref, err := l.registry.ResolveFileURL(ctx, pkg)
		if err != nil {
			return "", err
		}
		res := cache.Resolution{Location: specifier.VirtualModule(ref.Package.String()), URL: ref.URL, Tier: protocol.TierRegistry}
		l.protocol.Remember(spec, res)
		l.protocol.Remember(ref.Package.String(), res)
		return ref.URL, nil
	}
	return "", fmt.Errorf("%s: %w", spec, ErrNoSource)
}

func degraded(syntax Syntax, err error) Module {
	return Module{Syntax: syntax, Warning: err}
}

// urlDir returns u up to and including its last "/".
func urlDir(u string) string {
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[:i+1]
	}
	return u
}
