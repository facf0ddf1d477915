// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"sort"
	"strings"

	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

var (
	// entryNames are tried at the package root when a package has no "."
	// export.
	entryNames = []string{"mod", "index", "main"}
	entryExts  = []string{".ts", ".tsx", ".js", ".jsx", ".mjs"}
)

// MatchSubpath returns the published file path (with a leading "/") serving
// subpath, which is relative to the package root and may be empty.
//
// Lookup order: the exports table ("." or "./<subpath>"), an exact file in
// the manifest, then a manifest scan comparing paths with their extension
// stripped, where a path equal to the subpath beats one merely ending in
// "/<subpath>". At the package root, conventional entry files are tried
// after the exports table.
func MatchSubpath(meta *PackageMeta, name, subpath string) (string, error) {
	sub := strings.Trim(subpath, "/")
	sub = strings.TrimPrefix(sub, "./")

	if p, ok := exportTarget(meta, sub); ok {
		return p, nil
	}

	if sub == "" {
		for _, n := range entryNames {
			for _, ext := range entryExts {
				if p := "/" + n + ext; meta.HasFile(p) {
					return p, nil
				}
			}
		}
		return "", &NoExportMatchError{Package: name, Version: meta.Version}
	}

	if p := "/" + sub; meta.HasFile(p) {
		return p, nil
	}

	want := specifier.StripExt(sub)
	files := make([]string, 0, len(meta.Files))
	for f := range meta.Files {
		files = append(files, f)
	}
	sort.Strings(files)

	suffix := ""
	for _, f := range files {
		stripped := specifier.StripExt(f)
		if stripped == "/"+want {
			return f, nil
		}
		if suffix == "" && strings.HasSuffix(stripped, "/"+want) {
			suffix = f
		}
	}
	if suffix != "" {
		return suffix, nil
	}
	return "", &NoExportMatchError{Package: name, Version: meta.Version, Subpath: sub}
}

func exportTarget(meta *PackageMeta, sub string) (string, bool) {
	if meta == nil || len(meta.Exports) == 0 {
		return "", false
	}
	keys := []string{"."}
	if sub != "" {
		keys = []string{"./" + sub}
		if stripped := specifier.StripExt(sub); stripped != sub {
			keys = append(keys, "./"+stripped)
		}
	}
	for _, k := range keys {
		if target, ok := meta.Exports[k]; ok && target != "" {
			return "/" + strings.TrimPrefix(strings.TrimPrefix(target, "./"), "/"), true
		}
	}
	return "", false
}
