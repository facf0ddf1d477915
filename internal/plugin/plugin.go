// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shuliangfu/esbuild-sub001/internal/alias"
	"github.com/shuliangfu/esbuild-sub001/internal/cache"
	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/internal/loader"
	"github.com/shuliangfu/esbuild-sub001/internal/manifest"
	"github.com/shuliangfu/esbuild-sub001/internal/protocol"
	"github.com/shuliangfu/esbuild-sub001/internal/rebase"
	"github.com/shuliangfu/esbuild-sub001/internal/registry"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

// maxRewriteDepth bounds chains of aliases that rewrite to other aliases.
const maxRewriteDepth = 8

// ErrRewriteLoop is returned when alias rewrites do not terminate.
var ErrRewriteLoop = errors.New("alias rewrite loop")

type (
	// Options configures a Resolver.
	Options struct {
		// Runtime selects the host runtime profile. Defaults to deno.
		Runtime hostruntime.Name
		// RegistryURL overrides registry.DefaultBaseURL.
		RegistryURL string
		HTTPClient  *http.Client
		UserAgent   string
		// ResolverCommand overrides the runtime's resolver template.
		ResolverCommand string
		// SubprocessTimeout bounds each host resolver run. Zero selects
		// protocol.DefaultSubprocessTimeout and a negative value disables
		// the bound.
		SubprocessTimeout time.Duration
		DisableSubprocess bool
		// CommandRunner replaces the os/exec runner, mainly for tests.
		CommandRunner protocol.CommandRunner
		// ManifestDepth bounds the upward manifest search.
		ManifestDepth      int
		SourceCacheEntries int
		Logger             *slog.Logger
		// WorkingDir is the resolve directory for imports found in virtual
		// modules. Defaults to the process working directory.
		WorkingDir string
	}

	// Resolver wires every resolution stage over one build's cache.
	Resolver struct {
		opts      Options
		cache     *cache.Context
		runtime   hostruntime.Runtime
		manifests *manifest.Reader
		aliases   *alias.Resolver
		registry  *registry.Client
		protocol  *protocol.Resolver
		loader    *loader.Loader
		rebaser   *rebase.Rebaser
	}
)

// New creates a Resolver for one build.
func New(opts Options) (*Resolver, error) {
	if opts.Runtime == "" {
		opts.Runtime = hostruntime.Deno
	}
	rt, err := hostruntime.Lookup(opts.Runtime)
	if err != nil {
		return nil, err
	}
	rt = rt.WithResolveCommand(opts.ResolverCommand)

	if opts.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		opts.WorkingDir = wd
	}

	cc, err := cache.New(opts.Logger, opts.SourceCacheEntries)
	if err != nil {
		return nil, err
	}

	regOpts := []registry.ClientOption{registry.WithBaseURL(opts.RegistryURL), registry.WithHTTPClient(opts.HTTPClient)}
	if opts.UserAgent != "" {
		regOpts = append(regOpts, registry.WithUserAgent(opts.UserAgent))
	}
	reg := registry.NewClient(cc, regOpts...)

	manifests := manifest.NewReader(rt.ManifestFiles, opts.ManifestDepth, cc.Logger)

	protoOpts := []protocol.Option{protocol.WithSubprocess(!opts.DisableSubprocess)}
	switch {
	case opts.SubprocessTimeout > 0:
		protoOpts = append(protoOpts, protocol.WithSubprocessTimeout(opts.SubprocessTimeout))
	case opts.SubprocessTimeout < 0:
		protoOpts = append(protoOpts, protocol.WithSubprocessTimeout(0))
	}
	if opts.CommandRunner != nil {
		protoOpts = append(protoOpts, protocol.WithCommandRunner(opts.CommandRunner))
	}
	pr := protocol.New(cc, rt, manifests, reg, protoOpts...)

	return &Resolver{
		opts:      opts,
		cache:     cc,
		runtime:   rt,
		manifests: manifests,
		aliases:   alias.New(manifests),
		registry:  reg,
		protocol:  pr,
		loader:    loader.New(cc, pr),
		rebaser:   rebase.New(cc, pr),
	}, nil
}

// Cache returns the build's resolution cache.
func (r *Resolver) Cache() *cache.Context { return r.cache }

// Runtime returns the active host runtime profile.
func (r *Resolver) Runtime() hostruntime.Runtime { return r.runtime }

// Resolve answers one import.
//
// Relative and absolute imports are only handled inside Namespace, where
// they are rebased onto the importing virtual module; in the file
// namespace the bundler resolves them itself. Aliases and bare names are
// mapped through the workspace manifest; "@scope/pkg/sub" whose package
// root maps to a protocol specifier keeps "sub" as that package's subpath.
// Protocol specifiers go through the protocol tiers and URLs become
// virtual modules.
func (r *Resolver) Resolve(ctx context.Context, req ResolveRequest) (ResolveResponse, error) {
	return r.resolve(ctx, req, 0)
}

func (r *Resolver) resolve(ctx context.Context, req ResolveRequest, depth int) (ResolveResponse, error) {
	spec := req.Specifier
	fromDir := req.ResolveDir
	if fromDir == "" {
		fromDir = r.opts.WorkingDir
	}

	switch specifier.Classify(spec) {
	case specifier.KindRelative, specifier.KindAbsolute:
		if strings.HasPrefix(spec, "file://") {
			return r.respond(spec)(r.protocol.Resolve(ctx, spec, fromDir))
		}
		if req.Namespace != Namespace {
			return ResolveResponse{}, nil
		}
		return r.respond(spec)(r.rebaser.Rebase(ctx, rebase.Request{
			Importer:   req.Importer,
			Specifier:  spec,
			ResolveDir: fromDir,
		}))

	case specifier.KindURL:
		return ResolveResponse{Path: spec, Namespace: Namespace, Handled: true, Tier: "url"}, nil

	case specifier.KindProtocol:
		return r.respond(spec)(r.protocol.Resolve(ctx, spec, fromDir))

	default:
		if res, ok := r.aliases.Resolve(spec, fromDir); ok {
			if res.Rewritten == "" {
				return ResolveResponse{Path: res.Location.Path, Namespace: FileNamespace, Handled: true, Tier: "alias"}, nil
			}
			if root, sub, ok := splitScopedSubpath(spec); ok && (res.Key == root || res.Key == root+"/") &&
				specifier.Classify(res.Rewritten) == specifier.KindProtocol {
				res, err := r.protocol.ResolveSubpathViaManifest(ctx, root, sub, fromDir)
				if !errors.Is(err, protocol.ErrInconclusive) {
					return r.respond(spec)(res, err)
				}
			}
			if depth >= maxRewriteDepth {
				return ResolveResponse{}, fmt.Errorf("%w: %q", ErrRewriteLoop, req.Specifier)
			}
			r.cache.Logger.Debug("alias rewritten", "specifier", spec, "target", res.Rewritten, "manifest", res.Manifest.Path)
			next := req
			next.Specifier = res.Rewritten
			return r.resolve(ctx, next, depth+1)
		}
		return ResolveResponse{}, nil
	}
}

// respond converts a resolution into a response.
func (r *Resolver) respond(spec string) func(cache.Resolution, error) (ResolveResponse, error) {
	return func(res cache.Resolution, err error) (ResolveResponse, error) {
		if err != nil {
			return ResolveResponse{}, err
		}
		switch {
		case res.External:
			return ResolveResponse{Path: spec, External: true, Handled: true, Tier: res.Tier}, nil
		case res.Location.Kind == specifier.LocalFile:
			return ResolveResponse{Path: res.Location.Path, Namespace: FileNamespace, Handled: true, Tier: res.Tier}, nil
		default:
			return ResolveResponse{
				Path:      res.Location.Specifier,
				Namespace: Namespace,
				Handled:   true,
				Fallback:  res.Fallback,
				Tier:      res.Tier,
			}, nil
		}
	}
}

// Load returns the source of a virtual module. Requests outside Namespace
// are not handled.
func (r *Resolver) Load(ctx context.Context, req LoadRequest) LoadResponse {
	if req.Namespace != Namespace {
		return LoadResponse{}
	}
	m := r.loader.Load(ctx, specifier.VirtualModule(req.Path))
	resp := LoadResponse{
		Contents:   m.Contents,
		Syntax:     m.Syntax,
		ResolveDir: r.opts.WorkingDir,
		Handled:    true,
	}
	if m.Warning != nil {
		resp.Warnings = []string{fmt.Sprintf("%s: %v (using an empty module)", req.Path, m.Warning)}
	}
	return resp
}

// LoadLocation loads any resolved location, local or virtual.
func (r *Resolver) LoadLocation(ctx context.Context, loc specifier.Location) loader.Module {
	return r.loader.Load(ctx, loc)
}

// splitScopedSubpath splits "@scope/name/sub/path" into "@scope/name" and
// "sub/path". It reports false for specifiers with two or fewer segments.
func splitScopedSubpath(spec string) (root, sub string, ok bool) {
	if !strings.HasPrefix(spec, "@") {
		return "", "", false
	}
	parts := strings.SplitN(spec, "/", 3)
	if len(parts) < 3 || parts[0] == "@" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[0] + "/" + parts[1], parts[2], true
}
