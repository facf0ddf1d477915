// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/internal/issue"
	"github.com/shuliangfu/esbuild-sub001/internal/testutil"
)

// isolated returns LoadOptions that never see the real user config.
func isolated(t *testing.T) LoadOptions {
	t.Helper()
	return LoadOptions{WorkingDir: t.TempDir(), ConfigDirPath: t.TempDir()}
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewProvider().Load(context.Background(), isolated(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := DefaultConfig()
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_LocalFile(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	path := filepath.Join(opts.WorkingDir, LocalConfigFile)
	testutil.WriteFile(t, path, `
runtime: "bun"
registry: timeout: "5s"
resolver: {
	timeout:  "0"
	disabled: true
}
cache: source_entries: 16
`)

	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := DefaultConfig()
	want.Runtime = hostruntime.Bun
	want.Registry.Timeout = 5 * time.Second
	want.Resolver.Timeout = 0
	want.Resolver.Disabled = true
	want.Cache.SourceEntries = 16
	want.Path = path
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Precedence(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	testutil.WriteFile(t, filepath.Join(opts.ConfigDirPath, UserConfigFile), `log: level: "debug"`)

	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("user config not applied: log.level = %q", cfg.Log.Level)
	}

	// A project file shadows the user file entirely.
	testutil.WriteFile(t, filepath.Join(opts.WorkingDir, LocalConfigFile), `manifest: search_depth: 3`)
	cfg, err = NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Manifest.SearchDepth != 3 {
		t.Errorf("Load() = %+v, want project file only", cfg)
	}

	// An explicit file wins over both.
	explicit := filepath.Join(t.TempDir(), "custom.cue")
	testutil.WriteFile(t, explicit, `runtime: "bun"`)
	opts.ConfigFilePath = explicit
	cfg, err = NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Runtime != hostruntime.Bun || cfg.Manifest.SearchDepth != DefaultConfig().Manifest.SearchDepth || cfg.Path != explicit {
		t.Errorf("Load() = %+v, want explicit file only", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ESRESOLVE_REGISTRY_URL", "https://mirror.example")
	t.Setenv("ESRESOLVE_RESOLVER_DISABLED", "true")
	t.Setenv("ESRESOLVE_RESOLVER_TIMEOUT", "250ms")

	opts := isolated(t)
	testutil.WriteFile(t, filepath.Join(opts.WorkingDir, LocalConfigFile), `registry: url: "https://file.example"`)

	cfg, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Registry.URL != "https://mirror.example" {
		t.Errorf("registry.url = %q, want the environment value", cfg.Registry.URL)
	}
	if !cfg.Resolver.Disabled || cfg.Resolver.Timeout != 250*time.Millisecond {
		t.Errorf("resolver = %+v, want disabled with 250ms timeout", cfg.Resolver)
	}
}

func TestLoad_UserConfigDir(t *testing.T) {
	configHome := testutil.SetConfigHome(t, t.TempDir())
	testutil.WriteFile(t, filepath.Join(configHome, AppName, UserConfigFile), `runtime: "bun"`)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if want := filepath.Join(configHome, AppName); dir != want {
		t.Errorf("ConfigDir() = %q, want %q", dir, want)
	}

	cfg, err := NewProvider().Load(context.Background(), LoadOptions{WorkingDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Runtime != hostruntime.Bun {
		t.Errorf("Runtime = %q, want bun", cfg.Runtime)
	}
	if cfg.Path != filepath.Join(dir, UserConfigFile) {
		t.Errorf("Path = %q, want the user config file", cfg.Path)
	}
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("ESRESOLVE_RUNTIME", "node")

	_, err := NewProvider().Load(context.Background(), isolated(t))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Load() error = %v, want ErrInvalidConfig", err)
	}
	if !errors.Is(err, hostruntime.ErrUnknownRuntime) {
		t.Errorf("Load() error = %v, want it to wrap ErrUnknownRuntime", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{name: "syntax error", content: `runtime: "deno`, wantMsg: "load configuration"},
		{name: "unknown runtime", content: `runtime: "node"`, wantMsg: "runtime"},
		{name: "unknown field", content: `registry: mirror: "x"`, wantMsg: "mirror"},
		{name: "bad duration", content: `resolver: timeout: "soon"`, wantMsg: "timeout"},
		{name: "non-positive cache", content: `cache: source_entries: 0`, wantMsg: "source_entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := isolated(t)
			testutil.WriteFile(t, filepath.Join(opts.WorkingDir, LocalConfigFile), tt.content)

			_, err := NewProvider().Load(context.Background(), opts)
			if err == nil {
				t.Fatal("Load() succeeded, want an error")
			}
			var ae *issue.ActionableError
			if !errors.As(err, &ae) || !ae.HasSuggestions() {
				t.Errorf("Load() error = %T, want an ActionableError with suggestions", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load() error = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	opts := isolated(t)
	opts.ConfigFilePath = filepath.Join(opts.WorkingDir, "absent.cue")

	_, err := NewProvider().Load(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() error = %v, want config file not found", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewProvider().Load(ctx, isolated(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Load() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Runtime = hostruntime.Bun
	cfg.Resolver.Command = `bun run resolve.ts "$SPECIFIER"`
	cfg.Resolver.Timeout = 1500 * time.Millisecond

	opts := isolated(t)
	path := filepath.Join(opts.WorkingDir, LocalConfigFile)
	testutil.WriteFile(t, path, GenerateCUE(cfg))

	got, err := NewProvider().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("Load(generated) error = %v\n%s", err, GenerateCUE(cfg))
	}
	cfg.Path = path
	if diff := cmp.Diff(cfg, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
