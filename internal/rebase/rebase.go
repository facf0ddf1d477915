// SPDX-License-Identifier: MPL-2.0

// Package rebase resolves relative imports that appear inside virtual
// modules, whose source came from a registry or URL rather than disk.
package rebase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
	"github.com/shuliangfu/esbuild-sub001/internal/protocol"
	"github.com/shuliangfu/esbuild-sub001/internal/registry"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

// TierRebase is reported in cache.Resolution.Tier for rebased imports.
const TierRebase = "rebase"

// ErrNotRebasable is returned when the importer is neither a known module
// nor a protocol specifier.
var ErrNotRebasable = errors.New("cannot rebase relative import")

var scriptExts = []string{".ts", ".tsx"}

type (
	// Request is a relative import found in a virtual module.
	Request struct {
		// Importer is the virtual specifier of the importing module.
		Importer string
		// Specifier is the relative or root-relative import.
		Specifier string
		// ResolveDir is passed through to protocol resolution.
		ResolveDir string
	}

	// Rebaser resolves relative imports for one build.
	Rebaser struct {
		cache    *cache.Context
		protocol *protocol.Resolver
		registry *registry.Client
	}
)

// New creates a rebaser sharing the resolutions of pr.
func New(cc *cache.Context, pr *protocol.Resolver) *Rebaser {
	return &Rebaser{cache: cc, protocol: pr, registry: pr.Registry()}
}

// Rebase resolves req.Specifier relative to req.Importer. It tries, in
// order, the base directory recorded when the importer was loaded, the
// importer's concrete URL, and finally path arithmetic on the importer's
// protocol specifier. Registry paths never climb above the package root.
func (r *Rebaser) Rebase(ctx context.Context, req Request) (cache.Resolution, error) {
	if base, ok := r.cache.BaseDirs.Load(req.Importer); ok {
		if res, ok := r.fromBase(ctx, base, req.Specifier); ok {
			return res, nil
		}
	}
	if res, ok := r.fromImporterURL(ctx, req); ok {
		return res, nil
	}
	return r.fromSpecifier(ctx, req)
}

// fromBase joins rel onto a recorded base directory and checks that the
// result exists.
func (r *Rebaser) fromBase(ctx context.Context, base, rel string) (cache.Resolution, bool) {
	if !isURL(base) {
		p := rel
		if !path.IsAbs(rel) {
			p = filepath.Join(base, filepath.FromSlash(rel))
		}
		if found, ok := existingFile(p); ok {
			return cache.Resolution{Location: specifier.File(found), Tier: TierRebase}, true
		}
		return cache.Resolution{}, false
	}

	if name, version, dir, ok := r.registryURL(base); ok {
		return r.registryFile(ctx, name, version, joinWithin(dir, rel))
	}

	target, ok := resolveReference(base, rel)
	if !ok {
		return cache.Resolution{}, false
	}
	return r.remember(target, cache.Resolution{Location: specifier.VirtualModule(target), URL: target, Tier: TierRebase}), true
}

// fromImporterURL rebases against the importer's concrete location.
func (r *Rebaser) fromImporterURL(ctx context.Context, req Request) (cache.Resolution, bool) {
	if res, ok := r.cache.Resolutions.Load(req.Importer); ok && res.Location.Kind == specifier.LocalFile {
		return r.fromBase(ctx, filepath.Dir(res.Location.Path), req.Specifier)
	}

	u, ok := r.protocol.ConcreteURL(req.Importer)
	if !ok && specifier.Classify(req.Importer) == specifier.KindURL {
		u, ok = req.Importer, true
	}
	if !ok {
		return cache.Resolution{}, false
	}

	if name, version, file, ok := r.registryURL(u); ok {
		target := joinWithin(path.Dir(file), req.Specifier)
		if res, ok := r.registryFile(ctx, name, version, target); ok {
			return res, true
		}
		sub := strings.TrimPrefix(strings.TrimPrefix(target, "/"), "src/")
		spec := "jsr:" + name + "@" + version + "/" + specifier.StripExt(sub)
		res, err := r.protocol.Resolve(ctx, spec, req.ResolveDir)
		if err != nil || res.Fallback {
			return cache.Resolution{}, false
		}
		return res, true
	}

	target, ok := resolveReference(u, req.Specifier)
	if !ok {
		return cache.Resolution{}, false
	}
	return r.remember(target, cache.Resolution{Location: specifier.VirtualModule(target), URL: target, Tier: TierRebase}), true
}

// fromSpecifier treats the importer's subpath as a directory, climbs one
// segment per "../" (never above the package root) and resolves the result
// as a fresh protocol specifier.
func (r *Rebaser) fromSpecifier(ctx context.Context, req Request) (cache.Resolution, error) {
	pkg, err := specifier.ParsePackage(req.Importer)
	if err != nil {
		return cache.Resolution{}, fmt.Errorf("%w %q from %q: %w", ErrNotRebasable, req.Specifier, req.Importer, err)
	}

	ups, rest := splitUps(req.Specifier)
	if path.IsAbs(req.Specifier) {
		ups = pkg.Depth()
	}
	target := pkg.PopSegments(ups).Join(specifier.StripExt(rest))
	return r.protocol.Resolve(ctx, target.String(), req.ResolveDir)
}

// registryFile looks filePath up in a package manifest, with script
// extension retry, and seeds the protocol memo with the exact-path
// specifier it maps to.
func (r *Rebaser) registryFile(ctx context.Context, name, version, filePath string) (cache.Resolution, bool) {
	meta, err := r.registry.GetPackageMeta(ctx, name, version)
	if err != nil {
		r.cache.Logger.Debug("package metadata unavailable for rebase", "package", name, "version", version, "error", err)
		return cache.Resolution{}, false
	}
	candidates := []string{filePath}
	for _, ext := range scriptExts {
		candidates = append(candidates, filePath+ext)
	}
	for _, c := range candidates {
		if !meta.HasFile(c) {
			continue
		}
		spec := "jsr:" + name + "@" + version + c
		res := cache.Resolution{
			Location: specifier.VirtualModule(spec),
			URL:      r.registry.FileURL(name, version, c),
			Tier:     TierRebase,
		}
		return r.remember(spec, res), true
	}
	return cache.Resolution{}, false
}

func (r *Rebaser) registryURL(u string) (name, version, filePath string, ok bool) {
	if r.registry == nil {
		return "", "", "", false
	}
	return r.registry.ParseFileURL(u)
}

func (r *Rebaser) remember(spec string, res cache.Resolution) cache.Resolution {
	return r.protocol.Remember(spec, res)
}

// splitUps removes leading "./" and "../" segments from rel and returns how
// many levels they climb along with the cleaned remainder. ".." segments
// inside the remainder that climb past its start are counted too.
func splitUps(rel string) (int, string) {
	ups := 0
	rest := rel
	for {
		switch {
		case strings.HasPrefix(rest, "../"):
			ups++
			rest = rest[3:]
		case strings.HasPrefix(rest, "./"):
			rest = rest[2:]
		case rest == "..":
			return ups + 1, ""
		case rest == ".":
			return ups, ""
		default:
			cleaned := path.Clean(rest)
			for strings.HasPrefix(cleaned, "../") {
				ups++
				cleaned = cleaned[3:]
			}
			switch cleaned {
			case "..":
				return ups + 1, ""
			case ".":
				return ups, ""
			}
			return ups, strings.TrimPrefix(cleaned, "/")
		}
	}
}

// joinWithin joins rel onto dir, a "/"-rooted path inside a package. The
// result never leaves the package root.
func joinWithin(dir, rel string) string {
	if path.IsAbs(rel) {
		return path.Clean(rel)
	}
	return path.Join("/", dir, rel)
}

func resolveReference(base, rel string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(rel)
	if err != nil {
		return "", false
	}
	return b.ResolveReference(ref).String(), true
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

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
