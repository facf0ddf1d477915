// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shuliangfu/esbuild-sub001/internal/issue"
	"github.com/shuliangfu/esbuild-sub001/internal/plugin"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

func newLoadCommand(app *App) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "load <specifier>",
		Short: "Print the source esbuild would load for a specifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd.Context(), app, from, args[0])
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "directory the import appears in (default is the working directory)")
	return cmd
}

func runLoad(ctx context.Context, app *App, from, spec string) error {
	dir, err := workDir(from)
	if err != nil {
		return err
	}
	r, err := app.newResolver(dir)
	if err != nil {
		return err
	}

	loc, err := locate(ctx, r, dir, spec)
	if err != nil {
		return err
	}
	app.logger.Debug("loading module", "location", loc.String())

	m := r.LoadLocation(ctx, loc)
	if m.Warning != nil {
		app.logger.Warn("module source unavailable, using an empty module", "specifier", spec, "error", m.Warning)
	}
	fmt.Fprint(app.stdout, m.Contents)
	return nil
}

// locate resolves spec from dir. Local paths the plugin leaves to esbuild are
// taken relative to dir.
func locate(ctx context.Context, r *plugin.Resolver, dir, spec string) (specifier.Location, error) {
	resp, err := r.Resolve(ctx, plugin.ResolveRequest{Specifier: spec, Namespace: plugin.FileNamespace, ResolveDir: dir})
	if err != nil {
		return specifier.Location{}, err
	}
	switch {
	case resp.External:
		return specifier.Location{}, newServiceError(fmt.Errorf("%s is a host builtin and has no source", spec), issue.ModuleUnresolvedId)
	case !resp.Handled:
		switch specifier.Classify(spec) {
		case specifier.KindRelative:
			return specifier.File(filepath.Join(dir, spec)), nil
		case specifier.KindAbsolute:
			return specifier.File(spec), nil
		}
		return specifier.Location{}, newServiceError(fmt.Errorf("%s is not mapped by any workspace manifest", spec), issue.ModuleUnresolvedId)
	case resp.Namespace == plugin.FileNamespace:
		return specifier.File(resp.Path), nil
	default:
		return specifier.VirtualModule(resp.Path), nil
	}
}
