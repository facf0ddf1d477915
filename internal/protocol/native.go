// SPDX-License-Identifier: MPL-2.0

package protocol

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/shuliangfu/esbuild-sub001/internal/manifest"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

// nodeModulesExts are tried when a node_modules subpath names a file
// without its extension.
var nodeModulesExts = []string{".js", ".mjs", ".cjs", ".ts", ".tsx", ".jsx"}

// NativeResolver is an in-process resolution primitive. Its answer is only
// accepted when it names an existing local file.
type NativeResolver func(ctx context.Context, req Request) (specifier.Location, error)

type nodePackage struct {
	Exports json.RawMessage `json:"exports"`
	Module  string          `json:"module"`
	Main    string          `json:"main"`
}

// FileURL resolves "file://" specifiers to local paths.
func FileURL(_ context.Context, req Request) (specifier.Location, error) {
	if !strings.HasPrefix(req.Specifier, "file://") {
		return specifier.Location{}, ErrInconclusive
	}
	u, err := url.Parse(req.Specifier)
	if err != nil {
		return specifier.Location{}, inconclusive(err)
	}
	return specifier.File(filepath.FromSlash(u.Path)), nil
}

// NodeModules resolves "npm:" specifiers against the nearest node_modules
// directory at or above the importer that contains the package. The
// installed version is used whatever version the specifier names.
func NodeModules(_ context.Context, req Request) (specifier.Location, error) {
	pkg, err := specifier.ParsePackage(req.Specifier)
	if err != nil || pkg.Scheme != "npm" || req.FromDir == "" {
		return specifier.Location{}, ErrInconclusive
	}

	dir, err := filepath.Abs(req.FromDir)
	if err != nil {
		return specifier.Location{}, inconclusive(err)
	}
	for {
		root := filepath.Join(dir, "node_modules", filepath.FromSlash(pkg.ScopeAndName()))
		if p, ok := nodePackageEntry(root, pkg.Subpath); ok {
			return specifier.File(p), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return specifier.Location{}, ErrInconclusive
		}
		dir = parent
	}
}

// nodePackageEntry finds the file serving subpath inside an installed
// package rooted at root.
func nodePackageEntry(root, subpath string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return "", false
	}
	var pj nodePackage
	if err := json.Unmarshal(data, &pj); err != nil {
		return "", false
	}

	if subpath != "" {
		if target, ok := exportFor(pj.Exports, "./"+subpath); ok {
			if p, ok := fileWithExts(filepath.Join(root, filepath.FromSlash(target)), nil); ok {
				return p, true
			}
		}
		return fileWithExts(filepath.Join(root, filepath.FromSlash(subpath)), nodeModulesExts)
	}

	candidates := []string{}
	if target, ok := exportFor(pj.Exports, "."); ok {
		candidates = append(candidates, target)
	}
	candidates = append(candidates, pj.Module, pj.Main, "index.js")
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if p, ok := fileWithExts(filepath.Join(root, filepath.FromSlash(c)), nil); ok {
			return p, true
		}
	}
	return "", false
}

// exportFor reads one entry of a package.json "exports" field, which may be
// a string, a subpath map or a condition map.
func exportFor(raw json.RawMessage, key string) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, key == "."
	}
	var m map[string]manifest.ConditionalTarget
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", false
	}
	if t, ok := m[key]; ok {
		return t.Resolve()
	}
	if key != "." {
		return "", false
	}
	for k := range m {
		if strings.HasPrefix(k, ".") {
			return "", false
		}
	}
	return manifest.ConditionalTarget{Conditions: m}.Resolve()
}

func fileWithExts(p string, exts []string) (string, bool) {
	if isFile(p) {
		return p, true
	}
	for _, ext := range exts {
		if isFile(p + ext) {
			return p + ext, true
		}
	}
	for _, ext := range exts {
		if index := filepath.Join(p, "index"+ext); isFile(index) {
			return index, true
		}
	}
	return "", false
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}
