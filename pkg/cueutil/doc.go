// SPDX-License-Identifier: MPL-2.0

// Package cueutil compiles JSON-superset documents with CUE and decodes them
// into Go values.
//
// esresolve reads two kinds of document through CUE: its own configuration
// file, unified with an embedded schema before decoding, and deno.jsonc
// workspace manifests, which are plain JSON plus comments and trailing commas.
// CUE accepts both spellings, so the same path serves them.
//
//	m, err := cueutil.Decode[map[string]any](data,
//	    cueutil.WithSchema(schema, "#Config"),
//	    cueutil.WithFilename(path),
//	)
package cueutil
