// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/shuliangfu/esbuild-sub001/internal/loader"
)

// PluginName is the name esbuild reports in diagnostics.
const PluginName = "esresolve"

// ESBuild returns an esbuild plugin backed by r.
func (r *Resolver) ESBuild() api.Plugin {
	return api.Plugin{
		Name: PluginName,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^[^./]`, Namespace: FileNamespace}, r.onResolve)
			build.OnResolve(api.OnResolveOptions{Filter: `.*`, Namespace: Namespace}, r.onResolve)
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: Namespace}, r.onLoad)
		},
	}
}

func (r *Resolver) onResolve(args api.OnResolveArgs) (api.OnResolveResult, error) {
	resp, err := r.Resolve(context.Background(), ResolveRequest{
		Specifier:  args.Path,
		Importer:   args.Importer,
		Namespace:  args.Namespace,
		ResolveDir: args.ResolveDir,
	})
	if err != nil {
		return api.OnResolveResult{
			PluginName: PluginName,
			Errors:     []api.Message{{Text: err.Error()}},
		}, nil
	}
	if !resp.Handled {
		return api.OnResolveResult{}, nil
	}

	result := api.OnResolveResult{
		PluginName: PluginName,
		Path:       resp.Path,
		Namespace:  resp.Namespace,
		External:   resp.External,
	}
	if resp.Fallback {
		result.Warnings = []api.Message{{Text: "could not locate " + args.Path + "; it will be bundled as an empty module"}}
	}
	return result, nil
}

func (r *Resolver) onLoad(args api.OnLoadArgs) (api.OnLoadResult, error) {
	resp := r.Load(context.Background(), LoadRequest{Path: args.Path, Namespace: args.Namespace})
	if !resp.Handled {
		return api.OnLoadResult{}, nil
	}
	contents := resp.Contents
	result := api.OnLoadResult{
		PluginName: PluginName,
		Contents:   &contents,
		Loader:     esbuildLoader(resp.Syntax),
		ResolveDir: resp.ResolveDir,
	}
	for _, w := range resp.Warnings {
		result.Warnings = append(result.Warnings, api.Message{Text: w})
	}
	return result, nil
}

func esbuildLoader(s loader.Syntax) api.Loader {
	switch s {
	case loader.SyntaxTSX:
		return api.LoaderTSX
	case loader.SyntaxJS:
		return api.LoaderJS
	case loader.SyntaxJSX:
		return api.LoaderJSX
	default:
		return api.LoaderTS
	}
}
