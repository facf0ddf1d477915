// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// ActionableError is a user-facing failure of one CLI step: loading the
	// configuration, selecting the host runtime, parsing the resolver
	// command or writing a config file. The CLI prints Format's output and,
	// when Issue is set, the matching troubleshooting guide.
	//
	//	return issue.NewErrorContext().
	//		WithOperation("parse resolver command").
	//		WithResource(cfg.Resolver.Command).
	//		WithSuggestion("Quote arguments that contain spaces").
	//		WithIssue(issue.ResolverCommandFailedId).
	//		Wrap(err).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase completed by "failed to", such as
		// "load configuration".
		Operation string
		// Resource is the file, flag or value involved. Optional.
		Resource string
		// Suggestions are printed one per line below the message.
		Suggestions []string
		Cause       error
		// Issue selects the catalog guide shown with --verbose.
		Issue Id
	}

	// ErrorContext accumulates the fields of an ActionableError. An
	// operation is required; Build returns nil without one.
	ErrorContext struct {
		err ActionableError
	}
)

// NewErrorContext starts an empty ErrorContext.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error returns "failed to <operation>[: <resource>][: <cause>]".
func (e *ActionableError) Error() string {
	parts := []string{"failed to " + e.Operation}
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// HasSuggestions reports whether any suggestion is attached.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// Format renders the message followed by a bulleted suggestion list. With
// verbose set the cause chain is appended, one numbered line per wrapped
// error.
func (e *ActionableError) Format(verbose bool) string {
	var b strings.Builder
	b.WriteString(e.Error())

	if e.HasSuggestions() {
		b.WriteString("\n")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}

	if verbose && e.Cause != nil {
		b.WriteString("\n\nError chain:")
		for i, err := 1, e.Cause; err != nil; i, err = i+1, errors.Unwrap(err) {
			fmt.Fprintf(&b, "\n  %d. %s", i, err)
		}
	}
	return b.String()
}

// WithOperation sets the failed operation.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource sets the resource involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithSuggestion appends one suggestion.
func (c *ErrorContext) WithSuggestion(s string) *ErrorContext {
	c.err.Suggestions = append(c.err.Suggestions, s)
	return c
}

// WithIssue attaches a catalog guide.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.Issue = id
	return c
}

// Wrap sets the cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// Build returns the accumulated error, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.err.Operation == "" {
		return nil
	}
	ae := c.err
	ae.Suggestions = append([]string(nil), c.err.Suggestions...)
	return &ae
}

// BuildError is Build returned as an error, so a missing operation yields
// an untyped nil.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
