package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
)

// HTTP client defaults.
const (
	DefaultMaxIdleConns        = 50
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultRequestTimeout      = 15 * time.Second
)

// indexFile lists the children of a layout directory as a JSON array of
// strings. Remote repositories serve one per directory level.
const indexFile = "index.json"

// HTTP is a read-only repository served over http(s) with the standard
// layout plus index.json listings.
type HTTP struct {
	name    string
	baseURL string
	client  *http.Client
	cache   sync.Map // map[module.RevisionID]*module.Descriptor
}

// HTTPOption configures an HTTP repository.
type HTTPOption func(*HTTP)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(r *HTTP) {
		r.client = client
	}
}

// WithTimeout sets a custom HTTP request timeout.
// Zero or negative values fall back to the default timeout (15 seconds).
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(r *HTTP) {
		if timeout > 0 {
			r.client.Timeout = timeout
		} else {
			r.client.Timeout = DefaultRequestTimeout
		}
	}
}

// NewHTTP creates a repository for the given base URL.
func NewHTTP(name, baseURL string, opts ...HTTPOption) *HTTP {
	transport := &http.Transport{
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
	r := &HTTP{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout:   DefaultRequestTimeout,
			Transport: transport,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Name returns the repository id.
func (r *HTTP) Name() string { return r.name }

// BaseURL returns the repository base URL.
func (r *HTTP) BaseURL() string { return r.baseURL }

func (r *HTTP) ListOrganizations(ctx context.Context) ([]string, error) {
	return r.list(ctx, indexFile)
}

func (r *HTTP) ListModules(ctx context.Context, org string) ([]string, error) {
	return r.list(ctx, url.PathEscape(org)+"/"+indexFile)
}

func (r *HTTP) ListRevisions(ctx context.Context, id module.ID) ([]string, error) {
	return r.list(ctx, url.PathEscape(id.Organization)+"/"+url.PathEscape(id.Name)+"/"+indexFile)
}

// list fetches an index. A missing index is an empty listing.
func (r *HTTP) list(ctx context.Context, rel string) ([]string, error) {
	data, err := r.fetch(ctx, rel)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, &Error{Op: "list", Repository: r.name, Target: rel, Err: err}
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, &Error{Op: "list", Repository: r.name, Target: rel, Err: fmt.Errorf("parse index: %w", err)}
	}
	return names, nil
}

// Descriptor fetches and parses rev's descriptor. Results are cached.
func (r *HTTP) Descriptor(ctx context.Context, rev module.RevisionID) (*module.Descriptor, error) {
	if cached, ok := r.cache.Load(rev); ok {
		return cached.(*module.Descriptor), nil
	}
	rel := DescriptorPath(rev)
	data, err := r.fetch(ctx, rel)
	if err != nil {
		return nil, &Error{Op: "fetch descriptor", Repository: r.name, Target: rev.String(), Err: err}
	}
	md, err := descriptor.Parse(rel, data)
	if err != nil {
		return nil, &Error{Op: "parse descriptor", Repository: r.name, Target: rev.String(), Err: err}
	}
	r.cache.Store(rev, md)
	return md, nil
}

// Artifact fetches an artifact into memory and returns a reader over it.
func (r *HTTP) Artifact(ctx context.Context, rev module.RevisionID, a module.Artifact) (io.ReadCloser, error) {
	data, err := r.fetch(ctx, ArtifactPath(rev, a))
	if err != nil {
		return nil, &Error{Op: "fetch artifact", Repository: r.name, Target: rev.String() + "!" + a.Name, Err: err}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// fetch performs an HTTP GET and returns the response body. 404 maps to
// ErrNotFound.
func (r *HTTP) fetch(ctx context.Context, rel string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/"+rel, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, req.URL)
	}
	return io.ReadAll(resp.Body)
}

var _ Repository = (*HTTP)(nil)
