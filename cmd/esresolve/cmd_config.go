// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/shuliangfu/esbuild-sub001/internal/config"
	"github.com/shuliangfu/esbuild-sub001/internal/issue"
)

// newConfigCommand creates the `esresolve config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage esresolve configuration",
		Long: `Manage esresolve configuration.

Configuration is read from the first of:
  - the file given with --config
  - ./` + config.LocalConfigFile + `
  - <user config dir>/` + config.AppName + `/` + config.UserConfigFile + `

Any key can be overridden with an ` + config.EnvPrefix + `_ environment variable,
for example ` + config.EnvPrefix + `_REGISTRY_URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(app, format)
		},
	}
	showCmd.Flags().StringVar(&format, "format", "cue", "output format: cue, json or toml")
	cfgCmd.AddCommand(showCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.Path == "" {
				fmt.Fprintln(app.stdout, SubtitleStyle.Render("(no config file, using defaults)"))
				return nil
			}
			fmt.Fprintln(app.stdout, app.cfg.Path)
			return nil
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.LocalConfigFile + " to the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(app, force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	return cfgCmd
}

func showConfig(app *App, format string) error {
	switch format {
	case "cue":
		fmt.Fprint(app.stdout, config.GenerateCUE(app.cfg))
	case "json":
		enc := json.NewEncoder(app.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(app.cfg.Settings()); err != nil {
			return fmt.Errorf("encode configuration: %w", err)
		}
	case "toml":
		data, err := toml.Marshal(app.cfg.Settings())
		if err != nil {
			return fmt.Errorf("encode configuration: %w", err)
		}
		if _, err := app.stdout.Write(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown --format %q (use cue, json or toml)", format)
	}
	return nil
}

func initConfig(app *App, force bool) error {
	flag := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(config.LocalConfigFile, flag, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return issue.NewErrorContext().
			WithOperation("create configuration").
			WithResource(config.LocalConfigFile).
			WithSuggestion("Pass --force to overwrite it").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(err).
			BuildError()
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", config.LocalConfigFile, err)
	}
	if _, err := f.WriteString(config.GenerateCUE(config.DefaultConfig())); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", config.LocalConfigFile, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(app.stdout, "%s Created %s\n", SuccessStyle.Render("✓"), config.LocalConfigFile)
	return nil
}
