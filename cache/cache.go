// Package cache materializes resolved modules on local disk: each module's
// descriptor and the artifacts selected by an ArtifactFilter, laid out by
// configurable path patterns under a cache root.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/repository"
	"golang.org/x/sync/errgroup"
)

const defaultMaxConcurrency = 5

// ErrNoRoot is returned when a cache is created without a root directory.
var ErrNoRoot = errors.New("cache root is not set")

// Status describes what a download did for one file.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusCached     Status = "cached"
	StatusFailed     Status = "failed"
)

// ArtifactDownload records the download of one artifact.
type ArtifactDownload struct {
	Revision module.RevisionID `json:"revision" yaml:"revision"`
	Artifact module.Artifact   `json:"artifact" yaml:"artifact"`
	Path     string            `json:"path" yaml:"path"`
	Status   Status            `json:"status" yaml:"status"`
	Size     int64             `json:"size,omitempty" yaml:"size,omitempty"`
	Err      error             `json:"-" yaml:"-"`
}

// Cache is a directory of downloaded descriptors and artifacts.
type Cache struct {
	root              string
	descriptorPattern string
	artifactPattern   string
	concurrency       int
	logger            *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithPatterns overrides the descriptor and artifact layout patterns.
// Empty values keep the defaults.
func WithPatterns(descriptorPattern, artifactPattern string) Option {
	return func(c *Cache) {
		if descriptorPattern != "" {
			c.descriptorPattern = descriptorPattern
		}
		if artifactPattern != "" {
			c.artifactPattern = artifactPattern
		}
	}
}

// WithConcurrency bounds the number of parallel downloads.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger for download events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a cache rooted at root.
func New(root string, opts ...Option) (*Cache, error) {
	if root == "" {
		return nil, ErrNoRoot
	}
	c := &Cache{
		root:              filepath.Clean(root),
		descriptorPattern: DefaultDescriptorPattern,
		artifactPattern:   DefaultArtifactPattern,
		concurrency:       defaultMaxConcurrency,
		logger:            slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the cache directory.
func (c *Cache) Root() string { return c.root }

// DescriptorPattern returns the descriptor layout pattern, relative to Root.
func (c *Cache) DescriptorPattern() string { return c.descriptorPattern }

// ArtifactPattern returns the artifact layout pattern, relative to Root.
func (c *Cache) ArtifactPattern() string { return c.artifactPattern }

// DescriptorPath returns the absolute cache path of rev's descriptor.
func (c *Cache) DescriptorPath(rev module.RevisionID) string {
	return filepath.Join(c.root, filepath.FromSlash(Substitute(c.descriptorPattern, rev, module.Artifact{})))
}

// ArtifactPath returns the absolute cache path of an artifact of rev.
func (c *Cache) ArtifactPath(rev module.RevisionID, a module.Artifact) string {
	return filepath.Join(c.root, filepath.FromSlash(Substitute(c.artifactPattern, rev, a)))
}

// Download stores the descriptor of every resolved, non-evicted node and
// fetches the artifacts accepted by filter from source. Artifacts already
// present are not fetched again.
//
// Per-artifact failures are recorded in the returned downloads and do not
// stop the others. The returned error is reserved for failures that make
// the cache unusable: cancellation, an uncreatable root or an unwritable
// descriptor.
func (c *Cache) Download(ctx context.Context, source repository.Repository, nodes []module.ResolvedNode, filter ArtifactFilter) ([]ArtifactDownload, error) {
	if filter == nil {
		filter = AcceptAll
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache root %s: %w", c.root, err)
	}

	type job struct {
		rev module.RevisionID
		art module.Artifact
	}
	var jobs []job
	for _, n := range nodes {
		md, ok := n.Descriptor()
		if !ok || n.Evicted {
			continue
		}
		if err := descriptor.WriteFile(c.DescriptorPath(md.Revision), md); err != nil {
			return nil, fmt.Errorf("cache descriptor %s: %w", md.Revision, err)
		}
		for _, a := range Artifacts(n, filter) {
			jobs = append(jobs, job{rev: md.Revision, art: a})
		}
	}

	results := make([]ArtifactDownload, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.fetch(gctx, source, j.rev, j.art)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("download artifacts: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("download artifacts: %w", err)
	}
	return results, nil
}

func (c *Cache) fetch(ctx context.Context, source repository.Repository, rev module.RevisionID, a module.Artifact) ArtifactDownload {
	d := ArtifactDownload{Revision: rev, Artifact: a, Path: c.ArtifactPath(rev, a)}
	if info, err := os.Stat(d.Path); err == nil && !info.IsDir() {
		d.Status = StatusCached
		d.Size = info.Size()
		return d
	}

	n, err := c.copyArtifact(ctx, source, rev, a, d.Path)
	if err != nil {
		d.Status = StatusFailed
		d.Err = fmt.Errorf("download %s!%s from %s: %w", rev, a.Name, source.Name(), err)
		c.logger.Warn("artifact download failed", "module", rev.String(), "artifact", a.Name, "error", err)
		return d
	}
	d.Status = StatusDownloaded
	d.Size = n
	c.logger.Debug("downloaded artifact", "module", rev.String(), "artifact", a.Name, "size", n)
	return d
}

func (c *Cache) copyArtifact(ctx context.Context, source repository.Repository, rev module.RevisionID, a module.Artifact, dest string) (int64, error) {
	rc, err := source.Artifact(ctx, rev, a)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, rc)
	if err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	return n, os.Rename(tmp.Name(), dest)
}

// Failed returns the downloads that did not succeed.
func Failed(downloads []ArtifactDownload) []ArtifactDownload {
	var out []ArtifactDownload
	for _, d := range downloads {
		if d.Status == StatusFailed {
			out = append(out, d)
		}
	}
	return out
}
