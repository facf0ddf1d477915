// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"testing"
)

func meta(exports map[string]string, files ...string) *PackageMeta {
	m := &PackageMeta{Version: "1.0.0", Files: map[string]struct{}{}, Exports: exports}
	for _, f := range files {
		m.Files[f] = struct{}{}
	}
	return m
}

func TestMatchSubpath(t *testing.T) {
	t.Parallel()

	full := meta(
		map[string]string{".": "./mod.ts", "./posix": "./posix/mod.ts", "./extra": "/extra.ts"},
		"/mod.ts", "/posix/mod.ts", "/extra.ts", "/src/utils/string.ts", "/utils/string.ts", "/deep/nested/helper.tsx",
	)

	tests := []struct {
		name    string
		meta    *PackageMeta
		subpath string
		want    string
	}{
		{"main export", full, "", "/mod.ts"},
		{"named export", full, "posix", "/posix/mod.ts"},
		{"export with leading slash target", full, "extra", "/extra.ts"},
		{"exact manifest file", full, "utils/string.ts", "/utils/string.ts"},
		{"extension stripped full match beats suffix", full, "utils/string", "/utils/string.ts"},
		{"suffix match", full, "nested/helper", "/deep/nested/helper.tsx"},
		{"leading dot slash", full, "./posix", "/posix/mod.ts"},
		{"conventional entry without exports", meta(nil, "/index.ts", "/main.ts"), "", "/index.ts"},
		{"mod preferred over index", meta(nil, "/index.js", "/mod.ts"), "", "/mod.ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := MatchSubpath(tt.meta, "@s/p", tt.subpath)
			if err != nil {
				t.Fatalf("MatchSubpath(%q): %v", tt.subpath, err)
			}
			if got != tt.want {
				t.Errorf("MatchSubpath(%q) = %q, want %q", tt.subpath, got, tt.want)
			}
		})
	}
}

func TestMatchSubpath_NoMatch(t *testing.T) {
	t.Parallel()

	for _, sub := range []string{"", "missing"} {
		_, err := MatchSubpath(meta(nil, "/lib/a.ts"), "@s/p", sub)
		if !errors.Is(err, ErrNoExportMatch) {
			t.Errorf("MatchSubpath(%q) error = %v, want ErrNoExportMatch", sub, err)
		}
		var nm *NoExportMatchError
		if !errors.As(err, &nm) || nm.Package != "@s/p" {
			t.Errorf("error should be *NoExportMatchError, got %T", err)
		}
	}
}
