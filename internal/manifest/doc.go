// SPDX-License-Identifier: MPL-2.0

// Package manifest reads workspace manifests (deno.json, deno.jsonc and
// package.json) and exposes their import tables.
//
// Only the parts that influence module resolution are read. For deno
// manifests that is the "imports" table plus any file named by "importMap";
// for package.json it is the "imports" table plus dependency entries whose
// value is itself a protocol specifier ("npm:@jsr/std__path@1").
package manifest
