// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/shuliangfu/esbuild-sub001/internal/issue"
	"github.com/shuliangfu/esbuild-sub001/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "esresolve"
	// EnvPrefix prefixes environment overrides, as in ESRESOLVE_REGISTRY_URL.
	EnvPrefix = "ESRESOLVE"
	// LocalConfigFile is the project-level config file name.
	LocalConfigFile = AppName + ".cue"
	// UserConfigFile is the config file name inside ConfigDir.
	UserConfigFile = "config.cue"
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the esresolve directory under os.UserConfigDir.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

// loadWithOptions performs option-driven config loading with a fresh Viper
// instance, so loads never share state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := configPath(opts)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := loadCUEIntoViper(v, path); err != nil {
			return nil, issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(path).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'esresolve config show' to see the effective configuration").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Path = path

	if err := cfg.Validate(); err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(path).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables for typos").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	v.SetDefault("runtime", string(defaults.Runtime))
	v.SetDefault("registry.url", defaults.Registry.URL)
	v.SetDefault("registry.timeout", defaults.Registry.Timeout)
	v.SetDefault("resolver.command", defaults.Resolver.Command)
	v.SetDefault("resolver.timeout", defaults.Resolver.Timeout)
	v.SetDefault("resolver.disabled", defaults.Resolver.Disabled)
	v.SetDefault("manifest.search_depth", defaults.Manifest.SearchDepth)
	v.SetDefault("cache.source_entries", defaults.Cache.SourceEntries)
	v.SetDefault("log.level", defaults.Log.Level)
}

// configPath picks the file to load: an explicit path must exist, the
// project and user files are optional. It returns "" when no file applies.
func configPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithIssue(issue.ConfigLoadFailedId).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	local := LocalConfigFile
	if opts.WorkingDir != "" {
		local = filepath.Join(opts.WorkingDir, LocalConfigFile)
	}
	if fileExists(local) {
		return local, nil
	}

	dir := opts.ConfigDirPath
	if dir == "" {
		var err error
		if dir, err = ConfigDir(); err != nil {
			// No user config directory means no user config file.
			return "", nil //nolint:nilerr // defaults apply
		}
	}
	if user := filepath.Join(dir, UserConfigFile); fileExists(user) {
		return user, nil
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into v.
// The document is decoded to a map so Viper can layer defaults and
// environment overrides around it.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	configMap, err := cueutil.Decode[map[string]any](data,
		cueutil.WithFilename(path),
		cueutil.WithSchema(configSchema, "#Config"),
	)
	if err != nil {
		return err
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// GenerateCUE renders cfg as a config file.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// esresolve configuration\n\n")
	fmt.Fprintf(&sb, "runtime: %q\n", cfg.Runtime)

	sb.WriteString("\nregistry: {\n")
	fmt.Fprintf(&sb, "\turl:     %q\n", cfg.Registry.URL)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Registry.Timeout.String())
	sb.WriteString("}\n")

	sb.WriteString("\nresolver: {\n")
	if cfg.Resolver.Command != "" {
		fmt.Fprintf(&sb, "\tcommand:  %q\n", cfg.Resolver.Command)
	}
	fmt.Fprintf(&sb, "\ttimeout:  %q\n", cfg.Resolver.Timeout.String())
	fmt.Fprintf(&sb, "\tdisabled: %v\n", cfg.Resolver.Disabled)
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nmanifest: search_depth: %d\n", cfg.Manifest.SearchDepth)
	fmt.Fprintf(&sb, "cache: source_entries: %d\n", cfg.Cache.SourceEntries)
	fmt.Fprintf(&sb, "log: level: %q\n", cfg.Log.Level)

	return sb.String()
}
