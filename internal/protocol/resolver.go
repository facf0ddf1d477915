// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/internal/manifest"
	"github.com/shuliangfu/esbuild-sub001/internal/registry"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

// DefaultSubprocessTimeout bounds one host resolver invocation.
const DefaultSubprocessTimeout = 10 * time.Second

// Tier names reported in cache.Resolution.Tier.
const (
	TierMemo       = "memo"
	TierNative     = "native"
	TierSubprocess = "subprocess"
	TierRegistry   = "registry"
	TierBuiltin    = "builtin"
	TierFallback   = "fallback"
)

type (
	// Resolver resolves protocol-scheme specifiers for one build.
	Resolver struct {
		cache      *cache.Context
		runtime    hostruntime.Runtime
		manifests  *manifest.Reader
		registry   *registry.Client
		natives    []NativeResolver
		runner     CommandRunner
		timeout    time.Duration
		subprocess bool
		chain      Tier
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

// WithNativeResolvers replaces the default native resolvers (FileURL and
// NodeModules).
func WithNativeResolvers(natives ...NativeResolver) Option {
	return func(r *Resolver) {
		r.natives = natives
	}
}

// WithCommandRunner replaces the os/exec runner used by the subprocess tier.
func WithCommandRunner(runner CommandRunner) Option {
	return func(r *Resolver) {
		if runner != nil {
			r.runner = runner
		}
	}
}

// WithSubprocessTimeout bounds each subprocess. Zero disables the bound.
func WithSubprocessTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithSubprocess enables or disables the subprocess tier.
func WithSubprocess(enabled bool) Option {
	return func(r *Resolver) {
		r.subprocess = enabled
	}
}

// New creates a resolver.
func New(cc *cache.Context, rt hostruntime.Runtime, manifests *manifest.Reader, reg *registry.Client, opts ...Option) *Resolver {
	r := &Resolver{
		cache:      cc,
		runtime:    rt,
		manifests:  manifests,
		registry:   reg,
		natives:    []NativeResolver{FileURL, NodeModules},
		runner:     ExecRunner{},
		timeout:    DefaultSubprocessTimeout,
		subprocess: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.chain = FirstOf(
		Tier{Name: TierMemo, Resolve: r.resolveMemo},
		Tier{Name: TierNative, Resolve: r.resolveNative},
		Tier{Name: TierSubprocess, Resolve: r.resolveSubprocess},
		Tier{Name: TierRegistry, Resolve: r.resolveRegistry},
	)
	return r
}

// Registry returns the registry client the resolver uses.
func (r *Resolver) Registry() *registry.Client { return r.registry }

// Resolve resolves spec imported from a module in fromDir.
//
// "node:" builtins resolve to external locations. If no tier can answer,
// the result is a Fallback virtual module and the error is nil. A non-nil
// error is an *UnresolvedError and is terminal for this import.
func (r *Resolver) Resolve(ctx context.Context, spec, fromDir string) (cache.Resolution, error) {
	if strings.HasPrefix(spec, "node:") {
		return cache.Resolution{Location: specifier.VirtualModule(spec), Tier: TierBuiltin, External: true}, nil
	}

	res, err := r.chain.Resolve(ctx, Request{Specifier: spec, FromDir: fromDir})
	if errors.Is(err, ErrInconclusive) {
		r.cache.Logger.Warn("no resolver could locate module, using an empty module", "specifier", spec)
		return cache.Resolution{Location: specifier.VirtualModule(spec), Tier: TierFallback, Fallback: true}, nil
	}
	if err != nil {
		return cache.Resolution{}, &UnresolvedError{Specifier: spec, Err: err}
	}

	res = r.Remember(spec, res)
	if res.Location.Kind == specifier.Virtual && res.Location.Specifier != spec {
		r.Remember(res.Location.Specifier, res)
	}
	return res, nil
}

// Remember memoizes res for spec unless spec already has an answer, and
// returns the stored resolution. Fallback results are never stored.
func (r *Resolver) Remember(spec string, res cache.Resolution) cache.Resolution {
	if res.Fallback {
		return res
	}
	actual, _ := r.cache.Resolutions.LoadOrStore(spec, res)
	return actual
}

// ConcreteURL returns the remote URL a previous resolution of spec found.
func (r *Resolver) ConcreteURL(spec string) (string, bool) {
	res, ok := r.cache.Resolutions.Load(spec)
	if !ok || res.URL == "" {
		return "", false
	}
	return res.URL, true
}

// ResolveSubpathViaManifest resolves "<alias>/<subpath>" by looking up alias
// in the workspace manifest nearest to startDir and appending subpath to
// the protocol specifier it maps to.
func (r *Resolver) ResolveSubpathViaManifest(ctx context.Context, alias, subpath, startDir string) (cache.Resolution, error) {
	m, ok := r.manifests.Find(startDir)
	if !ok {
		return cache.Resolution{}, ErrInconclusive
	}
	target, ok := m.Lookup(alias)
	if !ok {
		target, ok = m.Lookup(alias + "/")
	}
	if !ok || specifier.Classify(target) != specifier.KindProtocol {
		return cache.Resolution{}, ErrInconclusive
	}
	full := strings.TrimSuffix(target, "/")
	if sub := strings.Trim(subpath, "/"); sub != "" {
		full += "/" + sub
	}
	return r.Resolve(ctx, full, startDir)
}

func (r *Resolver) resolveMemo(_ context.Context, req Request) (cache.Resolution, error) {
	if res, ok := r.cache.Resolutions.Load(req.Specifier); ok {
		return res, nil
	}
	return cache.Resolution{}, ErrInconclusive
}

func (r *Resolver) resolveNative(ctx context.Context, req Request) (cache.Resolution, error) {
	for _, native := range r.natives {
		loc, err := native(ctx, req)
		if err != nil {
			continue
		}
		if loc.Kind == specifier.LocalFile && isFile(loc.Path) {
			return cache.Resolution{Location: loc}, nil
		}
	}
	return cache.Resolution{}, ErrInconclusive
}

func (r *Resolver) resolveSubprocess(ctx context.Context, req Request) (cache.Resolution, error) {
	if !r.subprocess {
		return cache.Resolution{}, ErrInconclusive
	}
	m, ok := r.manifests.Find(req.FromDir)
	if !ok {
		return cache.Resolution{}, ErrInconclusive
	}
	argv, err := r.runtime.Command(req.Specifier, m.Path)
	if err != nil {
		r.cache.Logger.Debug("resolver command unavailable", "runtime", r.runtime.Name, "error", err)
		return cache.Resolution{}, inconclusive(err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	out, err := r.runner.Run(ctx, m.Dir, argv)
	if err != nil {
		r.cache.Logger.Debug("host resolver failed", "specifier", req.Specifier, "error", err)
		return cache.Resolution{}, inconclusive(err)
	}

	line := firstLine(out)
	switch {
	case strings.HasPrefix(line, "file://"):
		u, err := url.Parse(line)
		if err != nil {
			return cache.Resolution{}, inconclusive(err)
		}
		p := filepath.FromSlash(u.Path)
		if !isFile(p) {
			return cache.Resolution{}, ErrInconclusive
		}
		return cache.Resolution{Location: specifier.File(p)}, nil
	case strings.HasPrefix(line, "https://"), strings.HasPrefix(line, "http://"):
		return cache.Resolution{Location: specifier.VirtualModule(req.Specifier), URL: line}, nil
	case filepath.IsAbs(line) && isFile(line):
		return cache.Resolution{Location: specifier.File(line)}, nil
	default:
		return cache.Resolution{}, ErrInconclusive
	}
}

func (r *Resolver) resolveRegistry(ctx context.Context, req Request) (cache.Resolution, error) {
	scheme, _, ok := specifier.SplitScheme(req.Specifier)
	if !ok || scheme != "jsr" || r.registry == nil {
		return cache.Resolution{}, ErrInconclusive
	}
	pkg, err := specifier.ParsePackage(req.Specifier)
	if err != nil {
		return cache.Resolution{}, err
	}
	ref, err := r.registry.ResolveFileURL(ctx, pkg)
	if errors.Is(err, registry.ErrNotFound) {
		return cache.Resolution{}, inconclusive(err)
	}
	if err != nil {
		return cache.Resolution{}, err
	}
	return cache.Resolution{Location: specifier.VirtualModule(ref.Package.String()), URL: ref.URL}, nil
}
