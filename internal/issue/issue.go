// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Id identifies a catalog entry.
type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	UnknownRuntimeId
	ManifestInvalidId
	RegistryUnavailableId
	ModuleUnresolvedId
	ResolverCommandFailedId
	BuildFailedId
)

type (
	MarkdownMsg string

	HttpLink string

	// Issue is a troubleshooting guide for one failure class.
	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink  // must never be empty, because we need to have docs about all issue types
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// Render returns the guide formatted for a terminal using the named glamour
// style ("dark", "light", "notty", ...).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Configuration could not be loaded

esresolve reads, in order: the file given with ` + "`--config`" + `, ` + "`./esresolve.cue`" + `,
and ` + "`<user config dir>/esresolve/config.cue`" + `. ` + "`ESRESOLVE_*`" + ` environment
variables override any file.

## Things you can try:
- Print the effective settings:
~~~
$ esresolve config show
~~~
- Unset environment overrides one at a time, e.g. ` + "`unset ESRESOLVE_RUNTIME`",
		docLinks: []HttpLink{"https://cuelang.org/docs/tour/"},
	}

	unknownRuntimeIssue = &Issue{
		id: UnknownRuntimeId,
		mdMsg: `
# Unknown host runtime

The ` + "`runtime`" + ` setting must name a supported host: ` + "`deno`" + ` or ` + "`bun`" + `.

## Things you can try:
~~~
$ esresolve --runtime deno build main.ts
~~~`,
		docLinks: []HttpLink{"https://docs.deno.com/runtime/", "https://bun.sh/docs"},
	}

	manifestInvalidIssue = &Issue{
		id: ManifestInvalidId,
		mdMsg: `
# Workspace manifest is malformed

A ` + "`deno.json`" + `, ` + "`deno.jsonc`" + ` or ` + "`package.json`" + ` near the importing file could not
be parsed. Malformed manifests are skipped, so aliases declared in them do not apply.

## Things you can try:
- Validate the file with your editor's JSON support
- Make sure ` + "`imports`" + ` is an object mapping specifiers to strings
- Keep ` + "`importMap`" + ` pointing at a local file`,
		docLinks: []HttpLink{"https://docs.deno.com/runtime/fundamentals/configuration/"},
	}

	registryUnavailableIssue = &Issue{
		id: RegistryUnavailableId,
		mdMsg: `
# Package registry request failed

A package index, version manifest or source file could not be fetched.

## Things you can try:
- Check network access to the registry
- Point at a mirror:
~~~
$ ESRESOLVE_REGISTRY_URL=https://jsr.example esresolve build main.ts
~~~
- Raise the request timeout with ` + "`registry.timeout`",
		docLinks: []HttpLink{"https://jsr.io/docs/api"},
	}

	moduleUnresolvedIssue = &Issue{
		id: ModuleUnresolvedId,
		mdMsg: `
# Import could not be resolved

No resolution tier produced a location for the import, or the requested
version range matches no published version.

## Things you can try:
- Trace the lookup:
~~~
$ esresolve --verbose resolve <specifier>
~~~
- Check the version range against the versions the registry lists
- Add an alias to the workspace manifest's ` + "`imports`",
		docLinks: []HttpLink{"https://jsr.io/docs/using-packages"},
	}

	resolverCommandFailedIssue = &Issue{
		id: ResolverCommandFailedId,
		mdMsg: `
# Host resolver command is invalid

The ` + "`resolver.command`" + ` template could not be split into a command line.

## Things you can try:
- Quote ` + "`$SPECIFIER`" + ` and ` + "`$MANIFEST`" + ` in the template
- Disable the subprocess tier with ` + "`resolver.disabled: true`",
		docLinks: []HttpLink{"https://pkg.go.dev/mvdan.cc/sh/v3/shell#Fields"},
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Bundling failed

esbuild reported errors. Unlocatable imports become empty modules with a
warning, so errors usually point at syntax problems or unsatisfiable versions.

## Things you can try:
- Resolve the failing import on its own:
~~~
$ esresolve resolve --from . <specifier>
~~~`,
		docLinks: []HttpLink{"https://esbuild.github.io/plugins/"},
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		unknownRuntimeIssue.Id():        unknownRuntimeIssue,
		manifestInvalidIssue.Id():       manifestInvalidIssue,
		registryUnavailableIssue.Id():   registryUnavailableIssue,
		moduleUnresolvedIssue.Id():      moduleUnresolvedIssue,
		resolverCommandFailedIssue.Id(): resolverCommandFailedIssue,
		buildFailedIssue.Id():           buildFailedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(issues))
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

// Get returns the entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
