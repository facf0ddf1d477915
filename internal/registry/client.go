// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/shuliangfu/esbuild-sub001/internal/cache"
	"github.com/shuliangfu/esbuild-sub001/pkg/specifier"
)

const (
	// DefaultBaseURL is the public JSR registry.
	DefaultBaseURL = "https://jsr.io"

	// maxBodyBytes bounds every registry response (32 MB).
	maxBodyBytes = 32 << 20
)

type (
	// PackageMeta is the per-version metadata of a published package.
	PackageMeta = cache.PackageMeta

	// Client fetches registry documents and caches them in a build's
	// cache.Context. It is safe for concurrent use.
	Client struct {
		httpClient *http.Client
		baseURL    string
		userAgent  string
		cache      *cache.Context
		group      singleflight.Group
	}

	// ClientOption configures a Client during construction.
	ClientOption func(*Client)

	// FileRef is a package subpath resolved to one published file.
	FileRef struct {
		// Package is the requested package pinned to the selected version.
		Package specifier.Package
		// Path is the file path inside the package, with a leading "/".
		Path string
		URL  string
		Meta *PackageMeta
	}

	versionIndex struct {
		Versions map[string]struct {
			Yanked    bool `json:"yanked"`
			Retracted bool `json:"retracted"`
		} `json:"versions"`
	}

	versionMeta struct {
		Manifest map[string]json.RawMessage `json:"manifest"`
		Exports  map[string]string          `json:"exports"`
	}
)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides DefaultBaseURL, primarily for mirrors and test servers.
func WithBaseURL(base string) ClientOption {
	return func(c *Client) {
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client that caches into cc.
func NewClient(cc *cache.Context, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		userAgent:  "esresolve/dev",
		cache:      cc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the registry base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// PackageBaseURL returns "<base>/@scope/name".
func (c *Client) PackageBaseURL(name string) string {
	return c.baseURL + "/" + normalizeName(name)
}

// FileURL returns the URL of filePath inside one package version.
func (c *Client) FileURL(name, version, filePath string) string {
	return c.PackageBaseURL(name) + "/" + version + "/" + strings.TrimPrefix(filePath, "/")
}

// ParseFileURL splits a URL produced by FileURL. ok is false for URLs that
// do not point inside this registry.
func (c *Client) ParseFileURL(u string) (name, version, filePath string, ok bool) {
	rest, found := strings.CutPrefix(u, c.baseURL+"/")
	if !found {
		return "", "", "", false
	}
	parts := strings.SplitN(rest, "/", 4)
	if len(parts) < 3 || !strings.HasPrefix(parts[0], "@") || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	filePath = "/"
	if len(parts) == 4 {
		filePath += parts[3]
	}
	return parts[0] + "/" + parts[1], parts[2], filePath, true
}

// ResolveVersion returns the version of name selected by constraint. Exact
// versions are returned without a request. Concurrent callers asking for
// the same package share one index request.
func (c *Client) ResolveVersion(ctx context.Context, name, constraint string) (string, error) {
	if IsExactVersion(constraint) {
		return strings.TrimPrefix(constraint, "v"), nil
	}
	name = normalizeName(name)
	key := name + "@" + constraint
	if v, ok := c.cache.Versions.Load(key); ok {
		return v, nil
	}

	versions, err := c.versionIndex(ctx, name)
	if err != nil {
		return "", err
	}
	v, err := SelectVersion(name, versions, constraint)
	if err != nil {
		return "", err
	}
	v, _ = c.cache.Versions.LoadOrStore(key, v)
	return v, nil
}

func (c *Client) versionIndex(ctx context.Context, name string) ([]string, error) {
	if versions, ok := c.cache.Indexes.Load(name); ok {
		return versions, nil
	}
	res, err, _ := c.group.Do("index:"+name, func() (any, error) {
		if versions, ok := c.cache.Indexes.Load(name); ok {
			return versions, nil
		}
		u := c.PackageBaseURL(name) + "/meta.json"
		body, err := c.get(ctx, u)
		if err != nil {
			return nil, err
		}
		var idx versionIndex
		if err := json.Unmarshal(body, &idx); err != nil {
			return nil, &FetchError{URL: u, Err: fmt.Errorf("decode version index: %w", err)}
		}
		versions := make([]string, 0, len(idx.Versions))
		for v, info := range idx.Versions {
			if !info.Yanked && !info.Retracted {
				versions = append(versions, v)
			}
		}
		versions, _ = c.cache.Indexes.LoadOrStore(name, versions)
		return versions, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]string), nil
}

// GetPackageMeta returns the file manifest and exports table of one version.
func (c *Client) GetPackageMeta(ctx context.Context, name, version string) (*PackageMeta, error) {
	key := cache.PackageKey{Name: normalizeName(name), Version: version}
	if m, ok := c.cache.Packages.Load(key); ok {
		return m, nil
	}
	res, err, _ := c.group.Do("meta:"+key.Name+"@"+version, func() (any, error) {
		if m, ok := c.cache.Packages.Load(key); ok {
			return m, nil
		}
		u := c.PackageBaseURL(key.Name) + "/" + version + "_meta.json"
		body, err := c.get(ctx, u)
		if err != nil {
			return nil, err
		}
		var raw versionMeta
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, &FetchError{URL: u, Err: fmt.Errorf("decode package metadata: %w", err)}
		}
		meta := &PackageMeta{
			Version: version,
			Files:   make(map[string]struct{}, len(raw.Manifest)),
			Exports: raw.Exports,
		}
		for p := range raw.Manifest {
			meta.Files["/"+strings.TrimPrefix(p, "/")] = struct{}{}
		}
		meta, _ = c.cache.Packages.LoadOrStore(key, meta)
		return meta, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*PackageMeta), nil
}

// ResolveFileURL selects a version for pkg and maps its subpath to a
// published file.
func (c *Client) ResolveFileURL(ctx context.Context, pkg specifier.Package) (FileRef, error) {
	if pkg.Scope == "" {
		return FileRef{}, &specifier.InvalidPackageError{Value: pkg.String(), Reason: "registry packages are scoped"}
	}
	name := normalizeName(pkg.ScopeAndName())
	version, err := c.ResolveVersion(ctx, name, pkg.Version)
	if err != nil {
		return FileRef{}, err
	}
	meta, err := c.GetPackageMeta(ctx, name, version)
	if err != nil {
		return FileRef{}, err
	}
	p, err := MatchSubpath(meta, name, pkg.Subpath)
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{
		Package: pkg.WithVersion(version),
		Path:    p,
		URL:     c.FileURL(name, version, p),
		Meta:    meta,
	}, nil
}

// FetchSource returns the text of one published file.
func (c *Client) FetchSource(ctx context.Context, name, version, filePath string) (string, error) {
	return c.FetchURL(ctx, c.FileURL(name, version, filePath))
}

// FetchURL returns the text at an absolute URL, inside or outside the
// registry. Successful fetches are cached by URL.
func (c *Client) FetchURL(ctx context.Context, u string) (string, error) {
	if text, ok := c.cache.Sources.Get(u); ok {
		return text, nil
	}
	res, err, _ := c.group.Do("src:"+u, func() (any, error) {
		body, err := c.get(ctx, u)
		if err != nil {
			return nil, err
		}
		text := string(body)
		c.cache.Sources.Add(u, text)
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

// get performs one GET request. Every failure is a *FetchError.
func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.cache.Logger.Debug("registry request failed", "url", u, "error", err)
		return nil, &FetchError{URL: u, Err: err}
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode != http.StatusOK {
		c.cache.Logger.Debug("registry request failed", "url", u, "status", resp.StatusCode)
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	if LooksLikeHTML(body) {
		return nil, &FetchError{URL: u, Err: errHTMLBody}
	}
	c.cache.Logger.Debug("registry fetch", "url", u, "bytes", len(body))
	return body, nil
}

// LooksLikeHTML reports whether the first non-space character of body,
// after an optional byte-order mark, is "<". Registries and CDNs answer
// missing files with HTML error pages and a success status.
func LooksLikeHTML(body []byte) bool {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	body = bytes.TrimLeft(body, " \t\r\n")
	return len(body) > 0 && body[0] == '<'
}

// normalizeName ensures the scope carries its "@".
func normalizeName(name string) string {
	name = strings.Trim(name, "/")
	if !strings.HasPrefix(name, "@") {
		return "@" + name
	}
	return name
}
