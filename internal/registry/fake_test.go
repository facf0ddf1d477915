// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
)

// fakePackage is one package version served by fakeRegistry.
type fakePackage struct {
	exports map[string]string
	files   map[string]string
}

// fakeRegistry is an httptest server speaking the JSR layout.
type fakeRegistry struct {
	*httptest.Server

	mu       sync.Mutex
	versions map[string]map[string]bool // name -> version -> yanked
	packages map[string]fakePackage     // "name@version"
	raw      map[string]string          // path -> literal body
	hits     map[string]*atomic.Int64
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	f := &fakeRegistry{
		versions: map[string]map[string]bool{},
		packages: map[string]fakePackage{},
		raw:      map[string]string{},
		hits:     map[string]*atomic.Int64{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeRegistry) publish(name, version string, yanked bool, pkg fakePackage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.versions[name] == nil {
		f.versions[name] = map[string]bool{}
	}
	f.versions[name][version] = yanked
	f.packages[name+"@"+version] = pkg
}

func (f *fakeRegistry) serveRaw(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.raw[path] = body
}

func (f *fakeRegistry) count(path string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.hits[path]; ok {
		return c.Load()
	}
	return 0
}

func (f *fakeRegistry) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	c, ok := f.hits[r.URL.Path]
	if !ok {
		c = &atomic.Int64{}
		f.hits[r.URL.Path] = c
	}
	f.mu.Unlock()
	c.Add(1)

	f.mu.Lock()
	defer f.mu.Unlock()

	if body, ok := f.raw[r.URL.Path]; ok {
		_, _ = w.Write([]byte(body))
		return
	}

	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 4)
	if len(parts) < 3 {
		http.NotFound(w, r)
		return
	}
	name := parts[0] + "/" + parts[1]

	switch {
	case parts[2] == "meta.json":
		vs, ok := f.versions[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		doc := map[string]map[string]map[string]bool{"versions": {}}
		for v, yanked := range vs {
			doc["versions"][v] = map[string]bool{"yanked": yanked}
		}
		_ = json.NewEncoder(w).Encode(doc)
	case strings.HasSuffix(parts[2], "_meta.json") && len(parts) == 3:
		pkg, ok := f.packages[name+"@"+strings.TrimSuffix(parts[2], "_meta.json")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		manifest := map[string]map[string]any{}
		for p := range pkg.files {
			manifest[p] = map[string]any{"size": len(pkg.files[p])}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"manifest": manifest, "exports": pkg.exports})
	case len(parts) == 4:
		pkg, ok := f.packages[name+"@"+parts[2]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		text, ok := pkg.files["/"+parts[3]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(text))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, f *fakeRegistry) (*Client, *cache.Context) {
	t.Helper()
	cc, err := cache.New(nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	return NewClient(cc, WithBaseURL(f.URL), WithHTTPClient(f.Client())), cc
}
