// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// SetConfigHome points os.UserConfigDir at a directory under dir for the
// rest of the test and returns the directory it will report.
//
// Platform handling:
//   - Windows: Sets AppData
//   - macOS: Sets HOME (config lives under Library/Application Support)
//   - Other: Sets XDG_CONFIG_HOME
//
// It uses t.Setenv, so the calling test must not be parallel.
func SetConfigHome(t *testing.T, dir string) string {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		t.Setenv("AppData", dir)
		return dir
	case "darwin", "ios":
		t.Setenv("HOME", dir)
		return filepath.Join(dir, "Library", "Application Support")
	default:
		configHome := filepath.Join(dir, ".config")
		t.Setenv("XDG_CONFIG_HOME", configHome)
		return configHome
	}
}
