// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound reports a registry document that could not be retrieved:
	// a transport failure, a non-success status, an HTML body or an
	// unparseable document. It is never cached.
	ErrNotFound = errors.New("registry resource not found")

	// ErrNoExportMatch reports a package whose exports table and file
	// manifest contain nothing matching the requested subpath.
	ErrNoExportMatch = errors.New("no export matches subpath")

	// ErrNoVersionMatch reports a package with no published version
	// satisfying the requested constraint.
	ErrNoVersionMatch = errors.New("no version matches constraint")

	errHTMLBody = errors.New("response body is an HTML page")
)

type (
	// FetchError describes a failed registry request.
	FetchError struct {
		URL        string
		StatusCode int
		Err        error
	}

	// NoExportMatchError is returned when a subpath matches no published file.
	NoExportMatchError struct {
		Package string
		Version string
		Subpath string
	}

	// NoVersionMatchError is returned when a constraint matches no version.
	NoVersionMatchError struct {
		Package    string
		Constraint string
		Available  []string
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return "fetch " + e.URL + ": not found"
	}
}

// Unwrap returns ErrNotFound and the underlying cause, if any.
func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNotFound}
	}
	return []error{ErrNotFound, e.Err}
}

// Error implements the error interface.
func (e *NoExportMatchError) Error() string {
	sub := e.Subpath
	if sub == "" {
		sub = "."
	}
	return fmt.Sprintf("%s@%s: no export or file matches %q", e.Package, e.Version, sub)
}

// Unwrap returns ErrNoExportMatch so callers can use errors.Is for programmatic detection.
func (e *NoExportMatchError) Unwrap() error { return ErrNoExportMatch }

// Error implements the error interface.
func (e *NoVersionMatchError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("%s: no published versions", e.Package)
	}
	return fmt.Sprintf("%s: no version matches %q (available: %v)", e.Package, e.Constraint, e.Available)
}

// Unwrap returns ErrNoVersionMatch so callers can use errors.Is for programmatic detection.
func (e *NoVersionMatchError) Unwrap() error { return ErrNoVersionMatch }
