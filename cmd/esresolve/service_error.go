// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/shuliangfu/esbuild-sub001/internal/config"
	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/internal/issue"
	"github.com/shuliangfu/esbuild-sub001/internal/manifest"
	"github.com/shuliangfu/esbuild-sub001/internal/protocol"
	"github.com/shuliangfu/esbuild-sub001/internal/registry"
)

// ServiceError is an error that carries the issue catalog entry describing
// how to fix it. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classifyError picks the catalog entry for errors that were not wrapped in
// a ServiceError at their origin. It returns 0 when nothing applies.
func classifyError(err error) issue.Id {
	var svcErr *ServiceError
	var ae *issue.ActionableError
	var unresolved *protocol.UnresolvedError
	switch {
	case errors.As(err, &svcErr) && svcErr.IssueID != 0:
		return svcErr.IssueID
	case errors.As(err, &ae) && ae.Issue != 0:
		return ae.Issue
	case errors.Is(err, hostruntime.ErrUnknownRuntime):
		return issue.UnknownRuntimeId
	case errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId
	case errors.Is(err, manifest.ErrMalformed):
		return issue.ManifestInvalidId
	case errors.As(err, &unresolved), errors.Is(err, registry.ErrNoExportMatch), errors.Is(err, registry.ErrNoVersionMatch):
		return issue.ModuleUnresolvedId
	case errors.Is(err, registry.ErrNotFound):
		return issue.RegistryUnavailableId
	default:
		return 0
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderError writes err to w, followed by the matching troubleshooting
// guide when verbose is set.
func renderError(w io.Writer, err error, verbose bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	fmt.Fprintln(w, ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose))

	id := classifyError(err)
	if id == 0 {
		return
	}
	if !verbose {
		fmt.Fprintln(w, SubtitleStyle.Render("Run with --verbose for troubleshooting steps."))
		return
	}
	if catalogEntry := issue.Get(id); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue guide", "issue", id, "error", renderErr)
			return
		}
		fmt.Fprint(w, rendered)
	}
}
