// SPDX-License-Identifier: MPL-2.0

package cache

import "github.com/shuliangfu/esbuild-sub001/pkg/specifier"

type (
	// Resolution is the outcome of resolving one specifier.
	Resolution struct {
		Location specifier.Location
		// URL is the concrete remote URL of a Virtual location, when known.
		URL string
		// Tier names the resolution tier that produced the result.
		Tier string
		// Fallback is set when no tier could resolve the specifier and the
		// location is an empty placeholder.
		Fallback bool
		// External marks host builtins the bundler must leave untouched.
		External bool
	}

	// PackageMeta is the per-version metadata document of a registry package.
	PackageMeta struct {
		Version string
		// Files holds every file path in the published package, each with a
		// leading "/".
		Files map[string]struct{}
		// Exports maps subpath keys (".", "./posix") to file paths.
		Exports map[string]string
	}

	// PackageKey identifies one published package version.
	PackageKey struct {
		Name    string
		Version string
	}
)

// HasFile reports whether the package publishes the given path.
func (m *PackageMeta) HasFile(p string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Files[p]
	return ok
}
