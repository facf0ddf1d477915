// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/shuliangfu/esbuild-sub001/internal/config"
	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/internal/issue"
	"github.com/shuliangfu/esbuild-sub001/internal/plugin"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and reads configuration and output writers through it.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer

		flags  rootFlagValues
		cfg    *config.Config
		logger *slog.Logger
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}

	// rootFlagValues holds the persistent flags of the root command.
	rootFlagValues struct {
		configPath string
		verbose    bool
		runtime    string
	}
)

// NewApp creates an App, filling unset dependencies with defaults.
func NewApp(deps Dependencies) *App {
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		cfg:    config.DefaultConfig(),
		logger: newLogger(deps.Stderr, slog.LevelInfo),
	}
}

// newLogger returns a slog logger writing through a charmbracelet/log
// handler.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	handler := log.NewWithOptions(w, log.Options{
		Prefix: "esresolve",
		Level:  log.Level(level),
	})
	return slog.New(handler)
}

// loadConfig loads configuration, applies flag overrides and installs the
// logger. It runs before every subcommand.
func (a *App) loadConfig(ctx context.Context) error {
	cfg, err := a.Config.Load(ctx, config.LoadOptions{ConfigFilePath: a.flags.configPath})
	if err != nil {
		return err
	}
	if a.flags.runtime != "" {
		cfg.Runtime = hostruntime.Name(a.flags.runtime)
		if _, err := hostruntime.Lookup(cfg.Runtime); err != nil {
			return issue.NewErrorContext().
				WithOperation("select host runtime").
				WithResource("--runtime").
				WithSuggestion(fmt.Sprintf("Use one of %v", hostruntime.Names())).
				WithIssue(issue.UnknownRuntimeId).
				Wrap(err).
				BuildError()
		}
	}
	if cfg.Resolver.Command != "" {
		if _, err := (hostruntime.Runtime{Name: cfg.Runtime, ResolveCommand: cfg.Resolver.Command}).Command("probe", "probe"); err != nil {
			return issue.NewErrorContext().
				WithOperation("parse resolver command").
				WithResource(cfg.Resolver.Command).
				WithSuggestion("Quote arguments that contain spaces").
				WithSuggestion("Reference the lookup as $SPECIFIER and the manifest as $MANIFEST").
				WithIssue(issue.ResolverCommandFailedId).
				Wrap(err).
				BuildError()
		}
	}

	level := cfg.SlogLevel()
	if a.flags.verbose {
		level = slog.LevelDebug
	}
	a.cfg = cfg
	a.logger = newLogger(a.stderr, level)
	slog.SetDefault(a.logger)
	if cfg.Path != "" {
		a.logger.Debug("configuration loaded", "path", cfg.Path)
	}
	return nil
}

// resolverOptions maps the loaded configuration onto plugin options for a
// build rooted at workDir.
func (a *App) resolverOptions(workDir string) plugin.Options {
	timeout := a.cfg.Resolver.Timeout
	if timeout == 0 {
		timeout = -1
	}
	return plugin.Options{
		Runtime:            a.cfg.Runtime,
		RegistryURL:        a.cfg.Registry.URL,
		HTTPClient:         &http.Client{Timeout: a.cfg.Registry.Timeout},
		UserAgent:          "esresolve/" + Version,
		ResolverCommand:    a.cfg.Resolver.Command,
		SubprocessTimeout:  timeout,
		DisableSubprocess:  a.cfg.Resolver.Disabled,
		ManifestDepth:      a.cfg.Manifest.SearchDepth,
		SourceCacheEntries: a.cfg.Cache.SourceEntries,
		Logger:             a.logger,
		WorkingDir:         workDir,
	}
}

// newResolver creates a resolver with a fresh cache for one command run.
func (a *App) newResolver(workDir string) (*plugin.Resolver, error) {
	return plugin.New(a.resolverOptions(workDir))
}

// workDir returns dir as an absolute path, defaulting to the process
// working directory.
func workDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory %s: %w", dir, err)
	}
	return abs, nil
}
