// SPDX-License-Identifier: MPL-2.0

// Package specifier provides the value types shared by every resolution stage.
//
// A module specifier is the string that appears in an import statement. This
// package classifies specifiers ([Classify]), parses protocol-scheme package
// references into a structured [Package] with root-aware path algebra, and
// defines [Location], the tagged result a resolver hands to the source loader.
//
// Supported forms:
//   - Relative: "./util.ts", "../lib/mod.ts"
//   - Absolute: "/abs/path.ts", "file:///abs/path.ts"
//   - Remote URL: "https://example.com/mod.ts"
//   - Workspace alias: "@/utils", "~/components", "#internal", "@scope/name/sub"
//   - Bare package: "react"
//   - Protocol scheme: "jsr:@std/path@1.0.8/posix", "npm:react@18/jsx-runtime", "node:fs"
package specifier
