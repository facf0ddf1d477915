// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shuliangfu/esbuild-sub001/pkg/cueutil"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

// ErrMalformed is wrapped by every manifest parse failure.
var ErrMalformed = errors.New("malformed workspace manifest")

var errUnterminatedComment = errors.New("unterminated /* comment")

// dependencySchemes are the protocol schemes accepted as package.json
// dependency aliases. Other protocols ("workspace:", "file:") are left to
// the package manager.
var dependencySchemes = map[string]bool{
	"jsr": true,
	"npm": true,
}

// conditionOrder is the preference order for conditional package.json
// import targets.
var conditionOrder = []string{"bun", "import", "module", "default"}

type (
	// Manifest is the resolution-relevant content of a workspace manifest.
	Manifest struct {
		// Path is the absolute manifest file path.
		Path string
		// Dir is the directory containing the manifest. Relative targets are
		// resolved against it.
		Dir string
		// Imports maps an alias or package name to its target: a relative
		// path or a protocol specifier.
		Imports map[string]string
	}

	// ParseError reports a manifest that could not be read.
	ParseError struct {
		Path string
		Err  error
	}

	denoManifest struct {
		Imports   map[string]string `json:"imports"`
		ImportMap string            `json:"importMap"`
	}

	importMapFile struct {
		Imports map[string]string `json:"imports"`
	}

	packageManifest struct {
		Imports         map[string]ConditionalTarget `json:"imports"`
		Dependencies    map[string]string            `json:"dependencies"`
		DevDependencies map[string]string            `json:"devDependencies"`
	}

	// ConditionalTarget is a package.json import target: either a plain
	// string or an object keyed by condition name.
	ConditionalTarget struct {
		Value      string
		Conditions map[string]ConditionalTarget
	}
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest %s: %v", e.Path, e.Err)
}

// Unwrap returns both ErrMalformed and the underlying cause.
func (e *ParseError) Unwrap() []error { return []error{ErrMalformed, e.Err} }

// UnmarshalJSON accepts a string or a condition object.
func (c *ConditionalTarget) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		c.Value = s
		return nil
	}
	var m map[string]ConditionalTarget
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("import target must be a string or condition object: %w", err)
	}
	c.Conditions = m
	return nil
}

// Resolve picks the target for the preferred condition.
func (c ConditionalTarget) Resolve() (string, bool) {
	if c.Conditions == nil {
		return c.Value, c.Value != ""
	}
	for _, cond := range conditionOrder {
		if next, ok := c.Conditions[cond]; ok {
			if v, ok := next.Resolve(); ok {
				return v, true
			}
		}
	}
	return "", false
}

// Lookup returns the target for key.
func (m *Manifest) Lookup(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.Imports[key]
	return v, ok
}

// Keys returns the import keys sorted by descending length, ties broken
// lexically, so that the most specific prefix is tried first.
func (m *Manifest) Keys() []string {
	if m == nil {
		return nil
	}
	keys := make([]string, 0, len(m.Imports))
	for k := range m.Imports {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}

// Parse reads the manifest at path. The format is chosen by file name.
func Parse(path string) (*Manifest, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ParseError{Path: abs, Err: err}
	}

	m := &Manifest{Path: abs, Dir: filepath.Dir(abs), Imports: map[string]string{}}
	switch filepath.Base(abs) {
	case "package.json":
		err = m.parsePackageJSON(data)
	case "deno.jsonc":
		var raw denoManifest
		if data, err = blankBlockComments(data); err != nil {
			break
		}
		if raw, err = cueutil.Decode[denoManifest](data, cueutil.WithFilename(abs)); err == nil {
			err = m.applyDeno(raw)
		}
	default:
		var raw denoManifest
		if err = json.Unmarshal(data, &raw); err == nil {
			err = m.applyDeno(raw)
		}
	}
	if err != nil {
		return nil, &ParseError{Path: abs, Err: err}
	}
	return m, nil
}

func (m *Manifest) applyDeno(raw denoManifest) error {
	if raw.ImportMap != "" {
		if specifier.Classify(raw.ImportMap) == specifier.KindURL {
			return fmt.Errorf("remote importMap %q is not supported", raw.ImportMap)
		}
		p := raw.ImportMap
		if !filepath.IsAbs(p) {
			p = filepath.Join(m.Dir, p)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read importMap: %w", err)
		}
		var im importMapFile
		if err := json.Unmarshal(data, &im); err != nil {
			return fmt.Errorf("parse importMap %s: %w", p, err)
		}
		for k, v := range im.Imports {
			m.Imports[k] = v
		}
	}
	// Inline entries take precedence over the import map file.
	for k, v := range raw.Imports {
		m.Imports[k] = v
	}
	return nil
}

func (m *Manifest) parsePackageJSON(data []byte) error {
	var raw packageManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, deps := range []map[string]string{raw.DevDependencies, raw.Dependencies} {
		for name, v := range deps {
			if scheme, _, ok := specifier.SplitScheme(v); ok && dependencySchemes[scheme] {
				m.Imports[name] = v
			}
		}
	}
	for k, target := range raw.Imports {
		if v, ok := target.Resolve(); ok {
			m.Imports[k] = v
		}
	}
	return nil
}

// blankBlockComments overwrites "/* */" comments outside string literals
// with spaces. CUE only understands "//" comments. Newlines are kept so
// error positions still point into the original file.
func blankBlockComments(data []byte) ([]byte, error) {
	const (
		inCode = iota
		inString
		inLineComment
		inBlockComment
	)
	out := bytes.Clone(data)
	state := inCode
	for i := 0; i < len(out); i++ {
		c := out[i]
		next := byte(0)
		if i+1 < len(out) {
			next = out[i+1]
		}
		switch state {
		case inCode:
			switch {
			case c == '"':
				state = inString
			case c == '/' && next == '/':
				state = inLineComment
				i++
			case c == '/' && next == '*':
				out[i], out[i+1] = ' ', ' '
				state = inBlockComment
				i++
			}
		case inString:
			switch c {
			case '\\':
				i++
			case '"', '\n':
				state = inCode
			}
		case inLineComment:
			if c == '\n' {
				state = inCode
			}
		case inBlockComment:
			switch {
			case c == '*' && next == '/':
				out[i], out[i+1] = ' ', ' '
				state = inCode
				i++
			case c != '\n':
				out[i] = ' '
			}
		}
	}
	if state == inBlockComment {
		return nil, errUnterminatedComment
	}
	return out, nil
}
