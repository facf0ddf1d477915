// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// [ActionableError] carries the failed operation, the resource involved and
// remediation hints. The [Issue] catalog holds Markdown troubleshooting
// guides for the failure classes the CLI reports, rendered for the terminal
// with glamour.
package issue
