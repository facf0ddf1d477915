// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"maps"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stdPathDocs is a small published package: @std/path with one stable and
// one prerelease version. posix/mod.ts re-exports join.ts, which imports a
// file one directory up.
var stdPathDocs = map[string]string{
	"/@std/path/meta.json":                  `{"versions": {"1.0.8": {}, "1.1.0-rc.1": {}}}`,
	"/@std/path/1.0.8_meta.json":            `{"manifest": {"/posix/mod.ts": {}, "/posix/join.ts": {}, "/_common/normalize.ts": {}}, "exports": {"./posix": "./posix/mod.ts"}}`,
	"/@std/path/1.0.8/posix/mod.ts":         `export { join } from "./join.ts";`,
	"/@std/path/1.0.8/posix/join.ts":        "import { normalize } from \"../_common/normalize.ts\";\nexport function join(...parts: string[]): string {\n  return normalize(parts.join(\"/\"));\n}\n",
	"/@std/path/1.0.8/_common/normalize.ts": "export function normalize(p: string): string {\n  return p.replace(/\\/+/g, \"/\");\n}\n",
}

// StdPathDocs returns a copy of the @std/path registry fixture, keyed by
// request path.
func StdPathDocs() map[string]string {
	return maps.Clone(stdPathDocs)
}

// RegistryServer serves fixed documents by request path and answers 404 for
// anything else. The server is closed when the test ends.
func RegistryServer(t testing.TB, docs map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}
