// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/spf13/cobra"

	"github.com/shuliangfu/esbuild-sub001/internal/issue"
	"github.com/shuliangfu/esbuild-sub001/internal/watch"
	"github.com/shuliangfu/esbuild-sub001/pkg/types"
)

type buildFlagValues struct {
	outfile  string
	format   string
	platform string
	minify   bool
	watch    bool
	clear    bool
}

var (
	buildFormats = map[string]api.Format{
		"esm":  api.FormatESModule,
		"cjs":  api.FormatCommonJS,
		"iife": api.FormatIIFE,
	}
	buildPlatforms = map[string]api.Platform{
		"browser": api.PlatformBrowser,
		"node":    api.PlatformNode,
		"neutral": api.PlatformNeutral,
	}
)

func newBuildCommand(app *App) *cobra.Command {
	var flags buildFlagValues
	cmd := &cobra.Command{
		Use:   "build <entry>",
		Short: "Bundle an entry point with esbuild",
		Long: `Bundle an entry point with esbuild and the esresolve plugin.

The bundle is written to --outfile, or to stdout when no outfile is given.
With --watch the entry is rebuilt whenever a source file or workspace
manifest changes; every rebuild starts from an empty resolution cache.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok := buildFormats[flags.format]; !ok {
				return fmt.Errorf("unknown --format %q (use esm, cjs or iife)", flags.format)
			}
			if _, ok := buildPlatforms[flags.platform]; !ok {
				return fmt.Errorf("unknown --platform %q (use browser, node or neutral)", flags.platform)
			}
			if flags.watch {
				return runBuildWatch(cmd.Context(), app, flags, args[0])
			}
			return runBuild(app, flags, args[0])
		},
	}
	cmd.Flags().StringVarP(&flags.outfile, "outfile", "o", "", "write the bundle to this file")
	cmd.Flags().StringVar(&flags.format, "format", "esm", "output format: esm, cjs or iife")
	cmd.Flags().StringVar(&flags.platform, "platform", "browser", "target platform: browser, node or neutral")
	cmd.Flags().BoolVar(&flags.minify, "minify", false, "minify the bundle")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild on changes")
	cmd.Flags().BoolVar(&flags.clear, "clear", false, "clear the screen before each rebuild (with --watch)")
	return cmd
}

// runBuild performs one build with a fresh resolver.
func runBuild(app *App, flags buildFlagValues, entry string) error {
	dir, err := workDir("")
	if err != nil {
		return err
	}
	r, err := app.newResolver(dir)
	if err != nil {
		return err
	}

	opts := api.BuildOptions{
		EntryPoints:       []string{entry},
		Bundle:            true,
		Format:            buildFormats[flags.format],
		Platform:          buildPlatforms[flags.platform],
		MinifyWhitespace:  flags.minify,
		MinifyIdentifiers: flags.minify,
		MinifySyntax:      flags.minify,
		AbsWorkingDir:     dir,
		Plugins:           []api.Plugin{r.ESBuild()},
		LogLevel:          api.LogLevelSilent,
	}
	if flags.outfile != "" {
		opts.Outfile = flags.outfile
		opts.Write = true
	}

	result := api.Build(opts)
	for _, msg := range result.Warnings {
		app.logger.Warn(messageText(msg))
	}
	if len(result.Errors) > 0 {
		for _, formatted := range api.FormatMessages(result.Errors, api.FormatMessagesOptions{Kind: api.ErrorMessage}) {
			fmt.Fprint(app.stderr, formatted)
		}
		return newServiceError(fmt.Errorf("build of %s failed with %d error(s)", entry, len(result.Errors)), issue.BuildFailedId)
	}

	if flags.outfile == "" {
		for _, out := range result.OutputFiles {
			if _, err := app.stdout.Write(out.Contents); err != nil {
				return fmt.Errorf("write bundle: %w", err)
			}
		}
		return nil
	}
	app.logger.Info("bundle written", "entry", entry, "outfile", flags.outfile, "resolutions", r.Cache().Resolutions.Len())
	return nil
}

// runBuildWatch builds once, then rebuilds on every change until ctx is
// canceled. Failed builds are reported and watching continues.
func runBuildWatch(ctx context.Context, app *App, flags buildFlagValues, entry string) error {
	rebuild := func() {
		if err := runBuild(app, flags, entry); err != nil {
			renderError(app.stderr, err, app.flags.verbose)
		}
	}

	fmt.Fprintf(app.stderr, "%s Watch mode: initial build of %s\n", SpecStyle.Render("→"), entry)
	rebuild()
	fmt.Fprintf(app.stderr, "\n%s Watching for changes (Ctrl+C to stop)...\n\n", SpecStyle.Render("→"))

	var ignore []string
	if flags.outfile != "" {
		if abs, err := filepath.Abs(flags.outfile); err == nil {
			if dir, err := workDir(""); err == nil {
				if rel, err := filepath.Rel(dir, abs); err == nil && !strings.HasPrefix(rel, "..") {
					ignore = append(ignore, filepath.ToSlash(rel))
				}
			}
		}
	}

	w, err := watch.New(watch.Config{
		Ignore:      ignore,
		ClearScreen: flags.clear,
		Stdout:      app.stderr,
		Logger:      app.logger,
		OnChange: func(_ context.Context, changed []string) error {
			fmt.Fprintf(app.stderr, "%s Detected %d change(s). Rebuilding %s...\n", SpecStyle.Render("→"), len(changed), entry)
			rebuild()
			fmt.Fprintf(app.stderr, "\n%s Watching for changes...\n\n", SpecStyle.Render("→"))
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	if err := w.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintf(app.stderr, "%s Stopped watching\n", SpecStyle.Render("→"))
	return &ExitError{Code: types.ExitInterrupted}
}

// messageText renders an esbuild message as one line.
func messageText(msg api.Message) string {
	if msg.Location == nil {
		return msg.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
}
