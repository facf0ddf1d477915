// SPDX-License-Identifier: MPL-2.0

package specifier

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidPackage is the sentinel error wrapped by InvalidPackageError.
var ErrInvalidPackage = errors.New("invalid package specifier")

// unscopedSchemes lists the schemes whose packages may omit a scope.
var unscopedSchemes = map[string]bool{
	"npm":  true,
	"node": true,
}

type (
	// Package is a parsed protocol-scheme package reference:
	//
	//	scheme:scope/name[@version][/subpath]
	//
	// Scope keeps its leading "@" when the source text had one, so String
	// round-trips the original spelling. The package root (scheme, scope, name
	// and version) is the floor below which PopSegments never descends.
	Package struct {
		Scheme  string
		Scope   string
		Name    string
		Version string
		Subpath string
	}

	// InvalidPackageError is returned when a string cannot be parsed as a
	// protocol-scheme package reference.
	InvalidPackageError struct {
		Value  string
		Reason string
	}
)

// Error implements the error interface.
func (e *InvalidPackageError) Error() string {
	return fmt.Sprintf("invalid package specifier %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidPackage so callers can use errors.Is for programmatic detection.
func (e *InvalidPackageError) Unwrap() error { return ErrInvalidPackage }

// ParsePackage parses a protocol-scheme specifier into a Package.
//
// Schemes in unscopedSchemes accept "npm:react@18/jsx-runtime"; every other
// scheme requires a two-segment scope/name root, with or without a leading "@".
func ParsePackage(s string) (Package, error) {
	scheme, rest, ok := SplitScheme(s)
	if !ok {
		return Package{}, &InvalidPackageError{Value: s, Reason: "missing scheme"}
	}
	rest = strings.TrimPrefix(rest, "/")

	segs := splitSegments(rest)
	if len(segs) == 0 {
		return Package{}, &InvalidPackageError{Value: s, Reason: "missing package name"}
	}

	p := Package{Scheme: scheme}
	var nameSeg string
	var consumed int
	if strings.HasPrefix(segs[0], "@") || !unscopedSchemes[scheme] {
		if len(segs) < 2 || segs[0] == "@" {
			return Package{}, &InvalidPackageError{Value: s, Reason: "expected scope/name"}
		}
		p.Scope = segs[0]
		nameSeg = segs[1]
		consumed = 2
	} else {
		nameSeg = segs[0]
		consumed = 1
	}

	name, version, _ := strings.Cut(nameSeg, "@")
	if name == "" {
		return Package{}, &InvalidPackageError{Value: s, Reason: "empty package name"}
	}
	p.Name = name
	p.Version = version
	p.Subpath = strings.Join(segs[consumed:], "/")
	return p, nil
}

// ScopeAndName returns "scope/name", or just the name for unscoped packages.
func (p Package) ScopeAndName() string {
	if p.Scope == "" {
		return p.Name
	}
	return p.Scope + "/" + p.Name
}

// Root returns the package root "scheme:scope/name[@version]".
func (p Package) Root() string {
	root := p.Scheme + ":" + p.ScopeAndName()
	if p.Version != "" {
		root += "@" + p.Version
	}
	return root
}

// String returns the full specifier.
func (p Package) String() string {
	if p.Subpath == "" {
		return p.Root()
	}
	return p.Root() + "/" + p.Subpath
}

// Segments returns the subpath split on "/". It is empty at the package root.
func (p Package) Segments() []string {
	return splitSegments(p.Subpath)
}

// Depth returns the number of subpath segments below the package root.
func (p Package) Depth() int {
	return len(p.Segments())
}

// WithVersion returns a copy of p pinned to version.
func (p Package) WithVersion(version string) Package {
	p.Version = version
	return p
}

// WithSubpath returns a copy of p with its subpath replaced. Leading "./" and
// "/" are removed, as are empty and "." segments. ".." segments are applied
// but never climb above the package root.
func (p Package) WithSubpath(sub string) Package {
	var out []string
	for _, seg := range splitSegments(sub) {
		switch seg {
		case ".":
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}
	p.Subpath = strings.Join(out, "/")
	return p
}

// Join returns a copy of p with rel appended to its current subpath.
func (p Package) Join(rel string) Package {
	if p.Subpath == "" {
		return p.WithSubpath(rel)
	}
	return p.WithSubpath(p.Subpath + "/" + rel)
}

// PopSegments removes up to n trailing subpath segments. Requests deeper than
// the subpath clamp at the package root.
func (p Package) PopSegments(n int) Package {
	segs := p.Segments()
	if n >= len(segs) {
		p.Subpath = ""
		return p
	}
	if n > 0 {
		p.Subpath = strings.Join(segs[:len(segs)-n], "/")
	}
	return p
}

// Contains reports whether other names the same package (scheme, scope, name
// and version) as p, ignoring subpaths.
func (p Package) Contains(other Package) bool {
	return p.Scheme == other.Scheme &&
		strings.TrimPrefix(p.Scope, "@") == strings.TrimPrefix(other.Scope, "@") &&
		p.Name == other.Name &&
		p.Version == other.Version
}

// StripExt removes the trailing file extension from a slash-separated path.
func StripExt(p string) string {
	ext := path.Ext(p)
	if ext == "" || strings.Contains(ext, "/") {
		return p
	}
	return strings.TrimSuffix(p, ext)
}

func splitSegments(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
