// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/internal/manifest"
	"github.com/shuliangfu/esbuild-sub001/internal/registry"
	"github.com/shuliangfu/esbuild-sub001/internal/testutil"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

// fakeRunner records invocations and answers with a fixed output.
type fakeRunner struct {
	mu     sync.Mutex
	calls  [][]string
	dirs   []string
	output string
	err    error
	block  bool
}

func (f *fakeRunner) Run(ctx context.Context, dir string, argv []string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, argv)
	f.dirs = append(f.dirs, dir)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.output, f.err
}

var stdPathDocs = map[string]string{
	"/@std/path/meta.json":          `{"versions": {"1.0.8": {}, "1.0.9": {"yanked": true}}}`,
	"/@std/path/1.0.8_meta.json":    `{"manifest": {"/mod.ts": {}, "/posix/mod.ts": {}}, "exports": {".": "./mod.ts", "./posix": "./posix/mod.ts"}}`,
	"/@std/path/1.0.8/mod.ts":       `export * from "./posix/mod.ts";`,
	"/@std/path/1.0.8/posix/mod.ts": `export const sep = "/";`,
}

type fixture struct {
	dir      string
	cache    *cache.Context
	runner   *fakeRunner
	resolver *Resolver
}

func newFixture(t *testing.T, registryURL string, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "deno.json"), `{"imports": {"@std/path": "jsr:@std/path@1.0.8"}}`)

	cc, err := cache.New(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	rt, err := hostruntime.Lookup(hostruntime.Deno)
	if err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{err: errors.New("not installed")}
	reg := registry.NewClient(cc, registry.WithBaseURL(registryURL))
	opts = append([]Option{WithCommandRunner(runner)}, opts...)
	r := New(cc, rt, manifest.NewReader(rt.ManifestFiles, 0, nil), reg, opts...)
	return &fixture{dir: dir, cache: cc, runner: runner, resolver: r}
}

func TestFirstOf(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var visited []string
	tier := func(name string, res cache.Resolution, err error) Tier {
		return Tier{Name: name, Resolve: func(context.Context, Request) (cache.Resolution, error) {
			visited = append(visited, name)
			return res, err
		}}
	}

	got, err := FirstOf(
		tier("a", cache.Resolution{}, ErrInconclusive),
		tier("b", cache.Resolution{}, inconclusive(boom)),
		tier("c", cache.Resolution{Location: specifier.File("/x.ts")}, nil),
		tier("d", cache.Resolution{}, nil),
	).Resolve(context.Background(), Request{})
	if err != nil {
		t.Fatalf("FirstOf: %v", err)
	}
	if got.Tier != "c" || got.Location.Path != "/x.ts" {
		t.Errorf("FirstOf = %+v", got)
	}
	if !slices.Equal(visited, []string{"a", "b", "c"}) {
		t.Errorf("visited = %v", visited)
	}

	_, err = FirstOf(tier("e", cache.Resolution{}, boom), tier("f", cache.Resolution{}, nil)).
		Resolve(context.Background(), Request{})
	if !errors.Is(err, boom) {
		t.Errorf("terminal error = %v, want boom", err)
	}

	_, err = FirstOf().Resolve(context.Background(), Request{})
	if !errors.Is(err, ErrInconclusive) {
		t.Errorf("empty chain error = %v, want ErrInconclusive", err)
	}
}

func TestResolve_NodeBuiltinIsExternal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "http://127.0.0.1:0")
	res, err := f.resolver.Resolve(context.Background(), "node:fs", f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if !res.External || res.Tier != TierBuiltin {
		t.Errorf("Resolve(node:fs) = %+v", res)
	}
}

func TestResolve_RegistryVirtualModule(t *testing.T) {
	t.Parallel()

	srv := testutil.RegistryServer(t, stdPathDocs)
	f := newFixture(t, srv.URL)

	res, err := f.resolver.Resolve(context.Background(), "jsr:@std/path/posix", f.dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Location != specifier.VirtualModule("jsr:@std/path@1.0.8/posix") {
		t.Errorf("Location = %v", res.Location)
	}
	if res.Tier != TierRegistry || res.Fallback {
		t.Errorf("Resolution = %+v", res)
	}
	wantURL := srv.URL + "/@std/path/1.0.8/posix/mod.ts"
	for _, spec := range []string{"jsr:@std/path/posix", "jsr:@std/path@1.0.8/posix"} {
		if u, ok := f.resolver.ConcreteURL(spec); !ok || u != wantURL {
			t.Errorf("ConcreteURL(%q) = (%q, %v), want %q", spec, u, ok, wantURL)
		}
	}

	again, err := f.resolver.Resolve(context.Background(), "jsr:@std/path/posix", f.dir)
	if err != nil || again.Location != res.Location {
		t.Errorf("memoized Resolve = (%+v, %v)", again, err)
	}
	if len(f.runner.calls) != 1 {
		t.Errorf("subprocess ran %d times, want 1 (memo answers the second call)", len(f.runner.calls))
	}
}

func TestResolve_UnreachableRegistryFallsBack(t *testing.T) {
	t.Parallel()

	srv := testutil.RegistryServer(t, map[string]string{})
	f := newFixture(t, srv.URL)

	res, err := f.resolver.Resolve(context.Background(), "jsr:@gone/pkg", f.dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Fallback || res.Location != specifier.VirtualModule("jsr:@gone/pkg") {
		t.Errorf("Resolve = %+v, want a fallback virtual module", res)
	}
	if _, ok := f.cache.Resolutions.Load("jsr:@gone/pkg"); ok {
		t.Error("fallback resolution must not be memoized")
	}
}

func TestResolve_NoExportMatchIsTerminal(t *testing.T) {
	t.Parallel()

	srv := testutil.RegistryServer(t, stdPathDocs)
	f := newFixture(t, srv.URL)

	_, err := f.resolver.Resolve(context.Background(), "jsr:@std/path@1.0.8/windows", f.dir)
	if !errors.Is(err, registry.ErrNoExportMatch) {
		t.Fatalf("error = %v, want ErrNoExportMatch", err)
	}
	var ue *UnresolvedError
	if !errors.As(err, &ue) || ue.Specifier != "jsr:@std/path@1.0.8/windows" {
		t.Errorf("error should be *UnresolvedError, got %T", err)
	}
}

func TestResolve_SubprocessFileResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "http://127.0.0.1:0")
	target := filepath.Join(f.dir, "vendor", "x.ts")
	testutil.WriteFile(t, target, "export {};")
	f.runner.err = nil
	f.runner.output = "\n  file://" + filepath.ToSlash(target) + "\nignored\n"

	res, err := f.resolver.Resolve(context.Background(), "jsr:@s/x", filepath.Join(f.dir, "src"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Location != specifier.File(target) || res.Tier != TierSubprocess {
		t.Errorf("Resolve = %+v", res)
	}
	if f.runner.dirs[0] != f.dir {
		t.Errorf("subprocess ran in %q, want the manifest directory %q", f.runner.dirs[0], f.dir)
	}
	argv := f.runner.calls[0]
	if argv[0] != "deno" || argv[len(argv)-1] != "jsr:@s/x" || !slices.Contains(argv, filepath.Join(f.dir, "deno.json")) {
		t.Errorf("argv = %q", argv)
	}
}

func TestResolve_SubprocessInconclusiveResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		output string
	}{
		{"empty output", "\n\n"},
		{"missing local file", "file:///definitely/not/here.ts"},
		{"unrecognized", "npm:left-pad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, "http://127.0.0.1:0")
			f.runner.err = nil
			f.runner.output = tt.output
			res, err := f.resolver.Resolve(context.Background(), "npm:left-pad", f.dir)
			if err != nil {
				t.Fatal(err)
			}
			if !res.Fallback {
				t.Errorf("Resolve = %+v, want fallback", res)
			}
		})
	}
}

func TestResolve_SubprocessRemoteResult(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "http://127.0.0.1:0")
	f.runner.err = nil
	f.runner.output = "https://esm.example/x@1/mod.js\n"

	res, err := f.resolver.Resolve(context.Background(), "npm:x", f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Location != specifier.VirtualModule("npm:x") || res.URL != "https://esm.example/x@1/mod.js" {
		t.Errorf("Resolve = %+v", res)
	}
}

func TestResolve_SubprocessTimeout(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "http://127.0.0.1:0", WithSubprocessTimeout(20*time.Millisecond))
	f.runner.block = true

	res, err := f.resolver.Resolve(context.Background(), "npm:slow", f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback {
		t.Errorf("timed out subprocess should fall back, got %+v", res)
	}
}

func TestResolve_SubprocessDisabled(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "http://127.0.0.1:0", WithSubprocess(false))
	if _, err := f.resolver.Resolve(context.Background(), "npm:x", f.dir); err != nil {
		t.Fatal(err)
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("disabled subprocess tier ran %d times", len(f.runner.calls))
	}
}

func TestResolve_NativeNodeModules(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "http://127.0.0.1:0")
	pkgDir := filepath.Join(f.dir, "node_modules", "@scope", "ui")
	testutil.WriteFile(t, filepath.Join(pkgDir, "package.json"), `{
		"exports": {".": {"types": "./index.d.ts", "import": "./esm/index.js"}, "./button": "./esm/button.js"}
	}`)
	testutil.WriteFile(t, filepath.Join(pkgDir, "esm", "index.js"), "export {};")
	testutil.WriteFile(t, filepath.Join(pkgDir, "esm", "button.js"), "export {};")
	testutil.WriteFile(t, filepath.Join(pkgDir, "lib", "util.js"), "export {};")

	tests := map[string]string{
		"npm:@scope/ui@2":          filepath.Join(pkgDir, "esm", "index.js"),
		"npm:@scope/ui/button":     filepath.Join(pkgDir, "esm", "button.js"),
		"npm:@scope/ui@2/lib/util": filepath.Join(pkgDir, "lib", "util.js"),
	}
	for spec, want := range tests {
		res, err := f.resolver.Resolve(context.Background(), spec, filepath.Join(f.dir, "src", "deep"))
		if err != nil {
			t.Fatalf("Resolve(%q): %v", spec, err)
		}
		if res.Location != specifier.File(want) || res.Tier != TierNative {
			t.Errorf("Resolve(%q) = %+v, want %s", spec, res, want)
		}
	}
	if len(f.runner.calls) != 0 {
		t.Errorf("native hits should not spawn the host resolver, got %d calls", len(f.runner.calls))
	}
}

func TestNodeModules_MainFallbacks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "node_modules", "a", "package.json"), `{"module": "./a.mjs", "main": "./a.cjs"}`)
	testutil.WriteFile(t, filepath.Join(dir, "node_modules", "a", "a.mjs"), "")
	testutil.WriteFile(t, filepath.Join(dir, "node_modules", "b", "package.json"), `{"main": "lib/b"}`)
	testutil.WriteFile(t, filepath.Join(dir, "node_modules", "b", "lib", "b"), "")
	testutil.WriteFile(t, filepath.Join(dir, "node_modules", "c", "package.json"), `{"exports": "./dist/c.js"}`)
	testutil.WriteFile(t, filepath.Join(dir, "node_modules", "c", "dist", "c.js"), "")
	testutil.WriteFile(t, filepath.Join(dir, "node_modules", "d", "package.json"), `{}`)
	testutil.WriteFile(t, filepath.Join(dir, "node_modules", "d", "index.js"), "")

	tests := map[string]string{
		"npm:a": filepath.Join(dir, "node_modules", "a", "a.mjs"),
		"npm:b": filepath.Join(dir, "node_modules", "b", "lib", "b"),
		"npm:c": filepath.Join(dir, "node_modules", "c", "dist", "c.js"),
		"npm:d": filepath.Join(dir, "node_modules", "d", "index.js"),
	}
	for spec, want := range tests {
		loc, err := NodeModules(context.Background(), Request{Specifier: spec, FromDir: dir})
		if err != nil {
			t.Errorf("NodeModules(%q): %v", spec, err)
			continue
		}
		if loc.Path != want {
			t.Errorf("NodeModules(%q) = %q, want %q", spec, loc.Path, want)
		}
	}

	if _, err := NodeModules(context.Background(), Request{Specifier: "npm:missing", FromDir: dir}); !errors.Is(err, ErrInconclusive) {
		t.Errorf("missing package error = %v, want ErrInconclusive", err)
	}
}

func TestResolve_FileURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "http://127.0.0.1:0")
	target := filepath.Join(f.dir, "a.ts")
	testutil.WriteFile(t, target, "")

	res, err := f.resolver.Resolve(context.Background(), "file://"+filepath.ToSlash(target), f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Location != specifier.File(target) {
		t.Errorf("Resolve(file URL) = %+v", res)
	}
}

func TestResolveSubpathViaManifest(t *testing.T) {
	t.Parallel()

	srv := testutil.RegistryServer(t, stdPathDocs)
	f := newFixture(t, srv.URL)

	res, err := f.resolver.ResolveSubpathViaManifest(context.Background(), "@std/path", "posix", f.dir)
	if err != nil {
		t.Fatalf("ResolveSubpathViaManifest: %v", err)
	}
	if res.Location != specifier.VirtualModule("jsr:@std/path@1.0.8/posix") {
		t.Errorf("Location = %v", res.Location)
	}

	if _, err := f.resolver.ResolveSubpathViaManifest(context.Background(), "@other/pkg", "x", f.dir); !errors.Is(err, ErrInconclusive) {
		t.Errorf("unmapped alias error = %v, want ErrInconclusive", err)
	}
}
