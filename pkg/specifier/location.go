// SPDX-License-Identifier: MPL-2.0

package specifier

import "fmt"

const (
	// LocalFile is a module on the local filesystem.
	LocalFile LocationKind = iota
	// Virtual is a module identified by a protocol specifier or URL whose
	// source is fetched at load time.
	Virtual
)

type (
	// LocationKind discriminates the variants of Location.
	LocationKind int

	// Location is where a resolved module lives. Exactly one of Path (for
	// LocalFile) or Specifier (for Virtual) is set.
	Location struct {
		Kind      LocationKind
		Path      string
		Specifier string
	}
)

// File returns a LocalFile location.
func File(path string) Location {
	return Location{Kind: LocalFile, Path: path}
}

// VirtualModule returns a Virtual location for a protocol specifier or URL.
func VirtualModule(spec string) Location {
	return Location{Kind: Virtual, Specifier: spec}
}

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool {
	return l == Location{}
}

// Key returns the path or specifier, whichever the variant carries.
func (l Location) Key() string {
	if l.Kind == LocalFile {
		return l.Path
	}
	return l.Specifier
}

// String implements fmt.Stringer.
func (l Location) String() string {
	switch l.Kind {
	case LocalFile:
		return "file:" + l.Path
	case Virtual:
		return "virtual:" + l.Specifier
	default:
		return fmt.Sprintf("location(%d)", int(l.Kind))
	}
}
