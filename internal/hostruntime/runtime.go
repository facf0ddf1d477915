// SPDX-License-Identifier: MPL-2.0

// Package hostruntime describes the host JavaScript runtimes esresolve can
// target: the manifest files each one reads and how to invoke its own module
// resolver as a subprocess.
package hostruntime

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"mvdan.cc/sh/v3/shell"
)

const (
	// Deno is the deno host runtime.
	Deno Name = "deno"
	// Bun is the bun host runtime.
	Bun Name = "bun"
)

// ErrUnknownRuntime is returned by Lookup for names with no profile.
var ErrUnknownRuntime = errors.New("unknown host runtime")

type (
	// Name identifies a host runtime.
	Name string

	// Runtime is the profile of a host runtime.
	Runtime struct {
		Name Name
		// ManifestFiles are the workspace manifest names in lookup order.
		ManifestFiles []string
		// Binary is the executable looked up on PATH.
		Binary string
		// ResolveCommand is a shell-words template. $SPECIFIER and $MANIFEST
		// are expanded before the words are split.
		ResolveCommand string
	}

	// UnknownRuntimeError is returned when a runtime name has no profile.
	UnknownRuntimeError struct {
		Value Name
	}
)

var profiles = map[Name]Runtime{
	Deno: {
		Name:           Deno,
		ManifestFiles:  []string{"deno.json", "deno.jsonc"},
		Binary:         "deno",
		ResolveCommand: `deno eval --quiet --config "$MANIFEST" "console.log(import.meta.resolve(Deno.args[0]))" "$SPECIFIER"`,
	},
	Bun: {
		Name:           Bun,
		ManifestFiles:  []string{"package.json"},
		Binary:         "bun",
		ResolveCommand: `bun --eval "console.log(Bun.pathToFileURL(Bun.resolveSync(process.argv.at(-1), process.cwd())).href)" "$SPECIFIER"`,
	},
}

// Error implements the error interface.
func (e *UnknownRuntimeError) Error() string {
	return fmt.Sprintf("unknown host runtime %q (supported: %v)", e.Value, Names())
}

// Unwrap returns ErrUnknownRuntime so callers can use errors.Is for programmatic detection.
func (e *UnknownRuntimeError) Unwrap() error { return ErrUnknownRuntime }

// Lookup returns the profile for name.
func Lookup(name Name) (Runtime, error) {
	rt, ok := profiles[name]
	if !ok {
		return Runtime{}, &UnknownRuntimeError{Value: name}
	}
	rt.ManifestFiles = slices.Clone(rt.ManifestFiles)
	return rt, nil
}

// Names returns the supported runtime names in sorted order.
func Names() []Name {
	names := make([]Name, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// WithResolveCommand returns a copy of rt using tmpl as its resolver
// command. An empty tmpl keeps the default.
func (rt Runtime) WithResolveCommand(tmpl string) Runtime {
	if tmpl != "" {
		rt.ResolveCommand = tmpl
	}
	return rt
}

// Command expands the resolver template for one lookup and returns argv.
func (rt Runtime) Command(spec, manifestPath string) ([]string, error) {
	env := func(name string) string {
		switch name {
		case "SPECIFIER":
			return spec
		case "MANIFEST":
			return manifestPath
		default:
			return ""
		}
	}
	argv, err := shell.Fields(rt.ResolveCommand, env)
	if err != nil {
		return nil, fmt.Errorf("expand resolver command for %s: %w", rt.Name, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("resolver command for %s is empty", rt.Name)
	}
	return argv, nil
}
