// SPDX-License-Identifier: MPL-2.0

// Package config loads esresolve settings using Viper with CUE as the file format.
//
// Settings come from, in order of precedence: ESRESOLVE_* environment
// variables, the file named by --config, ./esresolve.cue, and
// <UserConfigDir>/esresolve/config.cue. Missing files are not an error; the
// defaults from DefaultConfig apply.
//
// Files are validated against the embedded CUE schema (config_schema.cue)
// before they reach Viper. Environment overrides bypass the schema, so the
// decoded Config is checked again by Validate.
package config
