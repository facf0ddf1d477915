// SPDX-License-Identifier: MPL-2.0

package plugin

import "github.com/shuliangfu/esbuild-sub001/internal/loader"

const (
	// Namespace is the bundler namespace of virtual modules.
	Namespace = "esresolve"
	// FileNamespace is the bundler namespace of local files.
	FileNamespace = "file"
)

type (
	// ResolveRequest is one import to resolve.
	ResolveRequest struct {
		Specifier string
		// Importer is the path of the importing module: a file path in the
		// file namespace or a virtual specifier in Namespace.
		Importer  string
		Namespace string
		// ResolveDir is the directory the importer's relative imports start
		// from. It is empty for virtual importers.
		ResolveDir string
	}

	// ResolveResponse is the answer to a ResolveRequest. When Handled is
	// false the bundler should apply its own resolution.
	ResolveResponse struct {
		Path      string
		Namespace string
		External  bool
		Handled   bool
		// Fallback is set for imports that no resolver could locate.
		Fallback bool
		// Tier names the stage that produced the answer.
		Tier string
	}

	// LoadRequest asks for the source of a resolved virtual module.
	LoadRequest struct {
		Path      string
		Namespace string
	}

	// LoadResponse is module source for the bundler.
	LoadResponse struct {
		Contents   string
		Syntax     loader.Syntax
		ResolveDir string
		Warnings   []string
		Handled    bool
	}
)
