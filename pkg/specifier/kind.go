// SPDX-License-Identifier: MPL-2.0

package specifier

import (
	"path/filepath"
	"strings"
)

const (
	// KindBare is a bare package name such as "react".
	KindBare Kind = iota
	// KindRelative is a "./" or "../" relative path.
	KindRelative
	// KindAbsolute is an absolute local path or a file:// URL.
	KindAbsolute
	// KindURL is a remote http(s) URL.
	KindURL
	// KindAlias is a workspace alias: "@scope/name/sub", "@/x", "~/x" or "#x".
	KindAlias
	// KindProtocol is a registry reference such as "jsr:@std/path".
	KindProtocol
)

// Kind classifies a module specifier.
type Kind int

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBare:
		return "bare"
	case KindRelative:
		return "relative"
	case KindAbsolute:
		return "absolute"
	case KindURL:
		return "url"
	case KindAlias:
		return "alias"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Classify returns the kind of the given specifier.
func Classify(s string) Kind {
	switch {
	case IsRelative(s):
		return KindRelative
	case strings.HasPrefix(s, "file://"), strings.HasPrefix(s, "/"), filepath.IsAbs(s):
		return KindAbsolute
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		return KindURL
	case strings.HasPrefix(s, "@"), strings.HasPrefix(s, "~/"), strings.HasPrefix(s, "#"):
		return KindAlias
	}
	if _, _, ok := SplitScheme(s); ok {
		return KindProtocol
	}
	return KindBare
}

// IsRelative reports whether s is a "./" or "../" relative specifier.
func IsRelative(s string) bool {
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}

// SplitScheme splits "scheme:rest" into its parts. The scheme must start with
// a letter, contain only [a-z0-9+.-] and be at least two characters long so
// that Windows drive letters are never mistaken for a scheme. Hierarchical
// URLs ("https://") are not protocol specifiers and report false.
func SplitScheme(s string) (scheme, rest string, ok bool) {
	idx := strings.IndexByte(s, ':')
	if idx < 2 {
		return "", "", false
	}
	scheme = s[:idx]
	for i, r := range scheme {
		switch {
		case r >= 'a' && r <= 'z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '.' || r == '-'):
		default:
			return "", "", false
		}
	}
	rest = s[idx+1:]
	if strings.HasPrefix(rest, "//") || rest == "" {
		return "", "", false
	}
	return scheme, rest, true
}
