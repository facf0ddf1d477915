// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include workspace files (WriteFile, MustMkdirAll), a fake
// package registry (RegistryServer) and an isolated user config directory
// (SetConfigHome).
package testutil
