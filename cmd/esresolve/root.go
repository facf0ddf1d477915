// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for esresolve.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/shuliangfu/esbuild-sub001/internal/hostruntime"
	"github.com/shuliangfu/esbuild-sub001/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Main runs the CLI with the process arguments and returns the exit code.
func Main() int {
	return Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// Execute runs the CLI with args and returns the exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := NewApp(Dependencies{Stdout: stdout, Stderr: stderr})
	rootCmd := newRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			renderError(w, err, app.flags.verbose)
		}),
	); err != nil {
		var exitErr *ExitError
		switch {
		case errors.As(err, &exitErr):
			return exitErr.Code.Int()
		case errors.Is(err, context.Canceled):
			return types.ExitInterrupted.Int()
		default:
			return types.ExitFailure.Int()
		}
	}
	return types.ExitSuccess.Int()
}

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "esresolve",
		Short: "Resolve deno and bun imports for esbuild",
		Long: TitleStyle.Render("esresolve") + SubtitleStyle.Render(" - deno and bun module resolution for esbuild") + `

esresolve bundles code written for deno or bun with esbuild. It maps
workspace aliases from deno.json or package.json, resolves jsr:, npm:
and node: specifiers, and fetches registry modules into the bundle.

` + SubtitleStyle.Render("Examples:") + `
  esresolve resolve jsr:@std/path      Show where a specifier resolves
  esresolve load @/utils/math          Print the source esbuild would load
  esresolve build src/main.ts          Bundle an entry point to stdout
  esresolve build src/main.ts --watch  Rebuild on every change
  esresolve config show                Show the effective configuration`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.loadConfig(cmd.Context())
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&app.flags.configPath, "config", "", "config file (default is ./esresolve.cue, then the user config directory)")
	rootCmd.PersistentFlags().StringVar(&app.flags.runtime, "runtime", "", fmt.Sprintf("host runtime %v (overrides config)", hostruntime.Names()))

	rootCmd.AddCommand(
		newResolveCommand(app),
		newLoadCommand(app),
		newBuildCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}
