// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/internal/manifest"
	"github.com/shuliangfu/esbuild-sub001/internal/protocol"
	"github.com/shuliangfu/esbuild-sub001/internal/registry"
)

// DefaultRegistryTimeout bounds a whole registry request.
const DefaultRegistryTimeout = 30 * time.Second

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	logLevels = []string{"debug", "info", "warn", "error"}
)

type (
	// Config is the complete set of esresolve settings.
	Config struct {
		Runtime  hostruntime.Name `mapstructure:"runtime"`
		Registry RegistryConfig   `mapstructure:"registry"`
		Resolver ResolverConfig   `mapstructure:"resolver"`
		Manifest ManifestConfig   `mapstructure:"manifest"`
		Cache    CacheConfig      `mapstructure:"cache"`
		Log      LogConfig        `mapstructure:"log"`

		// Path is the file the settings were read from. It is empty when
		// only defaults and environment variables apply.
		Path string `mapstructure:"-"`
	}

	// RegistryConfig configures the package registry client.
	RegistryConfig struct {
		URL     string        `mapstructure:"url"`
		Timeout time.Duration `mapstructure:"timeout"`
	}

	// ResolverConfig configures the host runtime resolver subprocess.
	ResolverConfig struct {
		Command  string        `mapstructure:"command"`
		Timeout  time.Duration `mapstructure:"timeout"`
		Disabled bool          `mapstructure:"disabled"`
	}

	// ManifestConfig configures workspace manifest discovery.
	ManifestConfig struct {
		SearchDepth int `mapstructure:"search_depth"`
	}

	// CacheConfig configures the per-build caches.
	CacheConfig struct {
		SourceEntries int `mapstructure:"source_entries"`
	}

	// LogConfig configures diagnostic logging.
	LogConfig struct {
		Level string `mapstructure:"level"`
	}

	// InvalidConfigError lists every field that failed validation.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Runtime: hostruntime.Deno,
		Registry: RegistryConfig{
			URL:     registry.DefaultBaseURL,
			Timeout: DefaultRegistryTimeout,
		},
		Resolver: ResolverConfig{
			Timeout: protocol.DefaultSubprocessTimeout,
		},
		Manifest: ManifestConfig{SearchDepth: manifest.DefaultSearchDepth},
		Cache:    CacheConfig{SourceEntries: 2048},
		Log:      LogConfig{Level: "info"},
	}
}

// Validate checks the decoded settings. It returns an *InvalidConfigError
// naming every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(hostruntime.Names(), c.Runtime) {
		errs = append(errs, &hostruntime.UnknownRuntimeError{Value: c.Runtime})
	}
	if u, err := url.Parse(c.Registry.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("registry.url %q: must be an absolute http(s) URL", c.Registry.URL))
	}
	if c.Registry.Timeout < 0 {
		errs = append(errs, fmt.Errorf("registry.timeout %s: must not be negative", c.Registry.Timeout))
	}
	if c.Resolver.Timeout < 0 {
		errs = append(errs, fmt.Errorf("resolver.timeout %s: must not be negative", c.Resolver.Timeout))
	}
	if c.Manifest.SearchDepth < 0 {
		errs = append(errs, fmt.Errorf("manifest.search_depth %d: must not be negative", c.Manifest.SearchDepth))
	}
	if c.Cache.SourceEntries <= 0 {
		errs = append(errs, fmt.Errorf("cache.source_entries %d: must be positive", c.Cache.SourceEntries))
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q: must be one of %s", c.Log.Level, strings.Join(logLevels, ", ")))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// SlogLevel converts Log.Level into a slog.Level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Settings returns the configuration as nested maps keyed like the CUE file,
// with durations rendered as strings.
func (c *Config) Settings() map[string]any {
	return map[string]any{
		"runtime": string(c.Runtime),
		"registry": map[string]any{
			"url":     c.Registry.URL,
			"timeout": c.Registry.Timeout.String(),
		},
		"resolver": map[string]any{
			"command":  c.Resolver.Command,
			"timeout":  c.Resolver.Timeout.String(),
			"disabled": c.Resolver.Disabled,
		},
		"manifest": map[string]any{"search_depth": c.Manifest.SearchDepth},
		"cache":    map[string]any{"source_entries": c.Cache.SourceEntries},
		"log":      map[string]any{"level": c.Log.Level},
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig followed by the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}
