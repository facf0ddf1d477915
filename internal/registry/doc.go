// SPDX-License-Identifier: MPL-2.0

// Package registry is a client for JSR-layout package registries.
//
// The registry serves three kinds of document under a base URL:
//
//	<base>/@scope/name/meta.json            version index
//	<base>/@scope/name/<version>_meta.json  per-version file manifest and exports table
//	<base>/@scope/name/<version><path>      file contents
//
// Every document fetched during a build is cached in the build's
// [cache.Context]. Failures are not cached: a registry that is briefly
// unreachable is retried by the next request for the same document.
package registry
