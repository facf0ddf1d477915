// SPDX-License-Identifier: MPL-2.0

package rebase

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/internal/manifest"
	"github.com/shuliangfu/esbuild-sub001/internal/protocol"
	"github.com/shuliangfu/esbuild-sub001/internal/registry"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

var docs = map[string]string{
	"/@std/path/1.0.8_meta.json": `{"manifest": {"/mod.ts": {}, "/_common.ts": {}, "/posix/mod.ts": {}, "/posix/join.ts": {}}, "exports": {".": "./mod.ts"}}`,
	"/@s/p/1.0.0_meta.json":      `{"manifest": {"/c.ts": {}, "/src/lib/a.ts": {}, "/src/lib/b.ts": {}, "/src/helpers/index.ts": {}}}`,
}

type fixture struct {
	url      string
	cache    *cache.Context
	protocol *protocol.Resolver
	rebaser  *Rebaser
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	cc, err := cache.New(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	rt, _ := hostruntime.Lookup(hostruntime.Deno)
	reg := registry.NewClient(cc, registry.WithBaseURL(srv.URL))
	pr := protocol.New(cc, rt, manifest.NewReader(rt.ManifestFiles, 0, nil), reg, protocol.WithSubprocess(false))
	return &fixture{url: srv.URL, cache: cc, protocol: pr, rebaser: New(cc, pr)}
}

func (f *fixture) rebase(t *testing.T, importer, rel string) cache.Resolution {
	t.Helper()
	res, err := f.rebaser.Rebase(context.Background(), Request{Importer: importer, Specifier: rel, ResolveDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Rebase(%q, %q): %v", importer, rel, err)
	}
	return res
}

func TestRebase_RegistryBaseDir(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	importer := "jsr:@std/path@1.0.8/posix"
	f.cache.BaseDirs.Store(importer, f.url+"/@std/path/1.0.8/posix/")

	tests := []struct {
		rel      string
		wantSpec string
		wantURL  string
	}{
		{"../_common.ts", "jsr:@std/path@1.0.8/_common.ts", "/@std/path/1.0.8/_common.ts"},
		{"../_common", "jsr:@std/path@1.0.8/_common.ts", "/@std/path/1.0.8/_common.ts"},
		{"./join.ts", "jsr:@std/path@1.0.8/posix/join.ts", "/@std/path/1.0.8/posix/join.ts"},
		{"../../../../../mod.ts", "jsr:@std/path@1.0.8/mod.ts", "/@std/path/1.0.8/mod.ts"},
		{"/posix/join.ts", "jsr:@std/path@1.0.8/posix/join.ts", "/@std/path/1.0.8/posix/join.ts"},
	}
	for _, tt := range tests {
		res := f.rebase(t, importer, tt.rel)
		if res.Location != specifier.VirtualModule(tt.wantSpec) {
			t.Errorf("Rebase(%q) = %v, want %s", tt.rel, res.Location, tt.wantSpec)
			continue
		}
		if u, ok := f.protocol.ConcreteURL(tt.wantSpec); !ok || u != f.url+tt.wantURL {
			t.Errorf("ConcreteURL(%q) = (%q, %v), want the rebased file URL seeded", tt.wantSpec, u, ok)
		}
	}
}

func TestRebase_LocalBaseDir(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "x.ts"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	f.cache.BaseDirs.Store("jsr:@local/pkg@1.0.0", dir)

	res := f.rebase(t, "jsr:@local/pkg@1.0.0", "./x")
	if res.Location != specifier.File(filepath.Join(dir, "x.ts")) {
		t.Errorf("Rebase = %v", res.Location)
	}
}

func TestRebase_RemoteURLBase(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.cache.BaseDirs.Store("npm:thing", "https://esm.example/v1/thing/")

	res := f.rebase(t, "npm:thing", "../dep.js")
	if res.Location != specifier.VirtualModule("https://esm.example/v1/dep.js") || res.URL != "https://esm.example/v1/dep.js" {
		t.Errorf("Rebase = %+v", res)
	}
	res = f.rebase(t, "npm:thing", "/v2/root.js")
	if res.Location.Specifier != "https://esm.example/v2/root.js" {
		t.Errorf("Rebase(root-relative) = %+v", res)
	}
}

func TestRebase_ImporterURL(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	importer := "jsr:@s/p@1.0.0/lib/a"
	f.protocol.Remember(importer, cache.Resolution{
		Location: specifier.VirtualModule(importer),
		URL:      f.url + "/@s/p/1.0.0/src/lib/a.ts",
	})

	res := f.rebase(t, importer, "./b.ts")
	if res.Location != specifier.VirtualModule("jsr:@s/p@1.0.0/src/lib/b.ts") {
		t.Errorf("Rebase(./b.ts) = %v", res.Location)
	}

	res = f.rebase(t, importer, "../helpers/index.js")
	if res.Location != specifier.VirtualModule("jsr:@s/p@1.0.0/helpers/index") {
		t.Errorf("Rebase(../helpers/index.js) = %v, want the src/-stripped protocol form", res.Location)
	}
	if res.URL != f.url+"/@s/p/1.0.0/src/helpers/index.ts" {
		t.Errorf("URL = %q", res.URL)
	}
}

func TestRebase_RawURLImporter(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	res := f.rebase(t, "https://deno.example/std/path/mod.ts", "./posix.ts")
	if res.Location.Specifier != "https://deno.example/std/path/posix.ts" {
		t.Errorf("Rebase = %+v", res)
	}
}

func TestRebase_SpecifierArithmetic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	res := f.rebase(t, "jsr:@s/p@1.0.0/a/b", "../../c.ts")
	if res.Location != specifier.VirtualModule("jsr:@s/p@1.0.0/c") || res.Fallback {
		t.Errorf("Rebase(../../c.ts) = %+v", res)
	}

	// Unpublished packages fall back, which exposes the rebased specifier.
	tests := []struct {
		importer string
		rel      string
		want     string
	}{
		{"jsr:@x/y@1.0.0/a/b", "../../c.ts", "jsr:@x/y@1.0.0/c"},
		{"jsr:@x/y@1.0.0/a/b", "../../../c.ts", "jsr:@x/y@1.0.0/c"},
		{"jsr:@x/y@1.0.0/a/b", "../c", "jsr:@x/y@1.0.0/a/c"},
		{"jsr:@x/y@1.0.0/a/b", "./c/./d.ts", "jsr:@x/y@1.0.0/a/b/c/d"},
		{"jsr:@x/y@1.0.0/a/b", "./c/../../../../d.ts", "jsr:@x/y@1.0.0/d"},
		{"jsr:@x/y@1.0.0/a/b", "/root.ts", "jsr:@x/y@1.0.0/root"},
		{"jsr:@x/y@1.0.0", "../../up.ts", "jsr:@x/y@1.0.0/up"},
	}
	for _, tt := range tests {
		res := f.rebase(t, tt.importer, tt.rel)
		if res.Location.Specifier != tt.want {
			t.Errorf("Rebase(%q, %q) = %q, want %q", tt.importer, tt.rel, res.Location.Specifier, tt.want)
		}
	}
}

func TestRebase_NotRebasable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.rebaser.Rebase(context.Background(), Request{Importer: "react", Specifier: "./x"})
	if !errors.Is(err, ErrNotRebasable) {
		t.Errorf("error = %v, want ErrNotRebasable", err)
	}
}

func TestSplitUps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		wantUps  int
		wantRest string
	}{
		{"./a.ts", 0, "a.ts"},
		{"../a.ts", 1, "a.ts"},
		{"../../a/b.ts", 2, "a/b.ts"},
		{".././../a", 2, "a"},
		{"a/../../b", 1, "b"},
		{"..", 1, ""},
		{"../", 1, ""},
		{".", 0, ""},
		{"/abs/x", 0, "abs/x"},
	}
	for _, tt := range tests {
		ups, rest := splitUps(tt.in)
		if ups != tt.wantUps || rest != tt.wantRest {
			t.Errorf("splitUps(%q) = (%d, %q), want (%d, %q)", tt.in, ups, rest, tt.wantUps, tt.wantRest)
		}
	}
}
