// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shuliangfu/esbuild-sub001/internal/issue"
	"github.com/shuliangfu/esbuild-sub001/internal/plugin"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

// maxConcurrentResolves bounds the lookups of one resolve invocation.
const maxConcurrentResolves = 8

type (
	resolveFlagValues struct {
		from     string
		importer string
	}

	// resolveResult is the outcome of one CLI lookup.
	resolveResult struct {
		spec string
		resp plugin.ResolveResponse
		err  error
	}
)

func newResolveCommand(app *App) *cobra.Command {
	var flags resolveFlagValues
	cmd := &cobra.Command{
		Use:   "resolve <specifier>...",
		Short: "Show where specifiers resolve",
		Long: `Resolve each specifier the way the esbuild plugin would and print the
result. Lookups run concurrently and share one resolution cache.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(cmd.Context(), app, flags, args)
		},
	}
	cmd.Flags().StringVar(&flags.from, "from", "", "directory the import appears in (default is the working directory)")
	cmd.Flags().StringVar(&flags.importer, "importer", "", "importing module; a URL or protocol specifier resolves inside a virtual module")
	return cmd
}

func runResolve(ctx context.Context, app *App, flags resolveFlagValues, specs []string) error {
	dir, err := workDir(flags.from)
	if err != nil {
		return err
	}
	r, err := app.newResolver(dir)
	if err != nil {
		return err
	}

	results := resolveAll(ctx, r, resolveRequest(flags, dir), specs)

	var errs []error
	for _, res := range results {
		writeResolveResult(app.stdout, res)
		if res.err != nil {
			errs = append(errs, res.err)
		}
	}
	if len(errs) > 0 {
		return newServiceError(
			fmt.Errorf("%d of %d specifier(s) could not be resolved: %w", len(errs), len(specs), errors.Join(errs...)),
			issue.ModuleUnresolvedId,
		)
	}
	return nil
}

// resolveRequest returns the request template shared by every lookup.
func resolveRequest(flags resolveFlagValues, dir string) plugin.ResolveRequest {
	req := plugin.ResolveRequest{Importer: flags.importer, Namespace: plugin.FileNamespace, ResolveDir: dir}
	switch specifier.Classify(flags.importer) {
	case specifier.KindURL, specifier.KindProtocol:
		req.Namespace = plugin.Namespace
		req.ResolveDir = ""
	}
	return req
}

// resolveAll resolves specs concurrently. Results keep the order of specs and
// a failed lookup never cancels the others.
func resolveAll(ctx context.Context, r *plugin.Resolver, tmpl plugin.ResolveRequest, specs []string) []resolveResult {
	results := make([]resolveResult, len(specs))
	var g errgroup.Group
	g.SetLimit(maxConcurrentResolves)
	for i, spec := range specs {
		g.Go(func() error {
			req := tmpl
			req.Specifier = spec
			resp, err := r.Resolve(ctx, req)
			results[i] = resolveResult{spec: spec, resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func writeResolveResult(w io.Writer, res resolveResult) {
	arrow := SubtitleStyle.Render("→")
	switch {
	case res.err != nil:
		fmt.Fprintf(w, "%s %s %s\n", SpecStyle.Render(res.spec), arrow, ErrorStyle.Render("unresolved"))
	case !res.resp.Handled:
		fmt.Fprintf(w, "%s %s %s\n", SpecStyle.Render(res.spec), arrow, SubtitleStyle.Render("(left to esbuild)"))
	case res.resp.External:
		fmt.Fprintf(w, "%s %s external %s\n", SpecStyle.Render(res.spec), arrow, SubtitleStyle.Render("["+res.resp.Tier+"]"))
	case res.resp.Fallback:
		fmt.Fprintf(w, "%s %s %s %s\n", SpecStyle.Render(res.spec), arrow, WarningStyle.Render(res.resp.Path), SubtitleStyle.Render("[empty module]"))
	default:
		fmt.Fprintf(w, "%s %s %s %s\n", SpecStyle.Render(res.spec), arrow, res.resp.Path, SubtitleStyle.Render(annotation(res.resp)))
	}
}

func annotation(resp plugin.ResolveResponse) string {
	if resp.Tier == "" {
		return "[" + resp.Namespace + "]"
	}
	return "[" + resp.Namespace + ", " + resp.Tier + "]"
}
