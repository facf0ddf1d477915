// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

func TestMap_LoadOrStore(t *testing.T) {
	t.Parallel()

	var m Map[string, Resolution]
	first := Resolution{Location: specifier.File("/a.ts"), Tier: "native"}
	second := Resolution{Location: specifier.File("/b.ts"), Tier: "subprocess"}

	got, loaded := m.LoadOrStore("x", first)
	if loaded || got != first {
		t.Fatalf("first LoadOrStore = (%+v, %v)", got, loaded)
	}
	got, loaded = m.LoadOrStore("x", second)
	if !loaded || got != first {
		t.Fatalf("second LoadOrStore = (%+v, %v), want the first value kept", got, loaded)
	}
	if _, ok := m.Load("missing"); ok {
		t.Error("Load(missing) reported a hit")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	m.Delete("x")
	if m.Len() != 0 {
		t.Errorf("Len() after Delete = %d, want 0", m.Len())
	}
}

func TestMap_ConcurrentInsertKeepsOneWinner(t *testing.T) {
	t.Parallel()

	var m Map[string, int]
	var wg sync.WaitGroup
	results := make([]int, 32)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = m.LoadOrStore("k", i)
		}()
	}
	wg.Wait()

	for i, r := range results {
		if r != results[0] {
			t.Fatalf("goroutine %d observed %d, goroutine 0 observed %d", i, r, results[0])
		}
	}
}

func TestSourceCache_Bounded(t *testing.T) {
	t.Parallel()

	c, err := NewSourceCache(2)
	if err != nil {
		t.Fatalf("NewSourceCache: %v", err)
	}
	for i := range 3 {
		c.Add(fmt.Sprintf("https://x/%d.ts", i), "text")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("https://x/0.ts"); ok {
		t.Error("oldest entry should have been evicted")
	}

	c.Add("https://x/2.ts", "changed")
	if got, _ := c.Get("https://x/2.ts"); got != "text" {
		t.Errorf("Add replaced an existing entry: %q", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c, err := New(nil, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Logger == nil || c.Sources == nil {
		t.Fatalf("New(nil, 0) left fields unset: %+v", c)
	}
	var meta *PackageMeta
	if meta.HasFile("/mod.ts") {
		t.Error("nil PackageMeta should report no files")
	}
}
