// SPDX-License-Identifier: MPL-2.0

// Package cache holds the per-build resolution state shared by every resolver
// stage.
//
// A [Context] is created once per build and dropped when the build finishes.
// Nothing in it is persisted, and nothing is invalidated while a build runs:
// registry metadata, version selections and resolved locations are all
// treated as immutable once stored. Concurrent hooks share a Context; every
// map is safe for concurrent use and inserts are atomic insert-if-absent.
package cache
