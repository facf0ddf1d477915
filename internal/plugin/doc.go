// SPDX-License-Identifier: MPL-2.0

// Package plugin composes the resolution stages into bundler hooks.
//
// [Resolver] is the bundler-independent core: it accepts [ResolveRequest]
// and [LoadRequest] values and answers with [ResolveResponse] and
// [LoadResponse]. [Resolver.ESBuild] adapts it to an esbuild plugin that
// resolves non-relative imports in the file namespace and owns the virtual
// namespace [Namespace], where registry and URL modules live.
//
// A Resolver holds the caches for exactly one build. Create a new one for
// every build, including each rebuild in watch mode.
package plugin
