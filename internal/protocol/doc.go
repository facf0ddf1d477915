// SPDX-License-Identifier: MPL-2.0

// Package protocol resolves protocol-scheme specifiers ("jsr:@std/path",
// "npm:react") through an ordered chain of tiers.
//
// Each tier either answers or reports [ErrInconclusive], handing the request
// to the next tier:
//
//  1. memo: a previous answer for the same specifier in this build
//  2. native: in-process lookups such as file:// URLs and node_modules
//  3. subprocess: the host runtime's own resolver, run in the workspace
//  4. registry: JSR metadata, for the jsr scheme only
//
// When every tier is inconclusive the specifier resolves to an empty virtual
// module so a single unreachable dependency does not abort the build.
package protocol
