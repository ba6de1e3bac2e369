// Package publish copies a module revision, descriptor and artifacts, from
// files laid out by path patterns into a destination repository.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/albertocavalcante/go-depot/cache"
	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
	"github.com/albertocavalcante/go-depot/repository"
)

// ErrMissingDescriptor indicates the source descriptor file does not exist.
var ErrMissingDescriptor = errors.New("source descriptor not found")

// Options control one publication.
type Options struct {
	// Overwrite replaces content already present in the destination.
	Overwrite bool

	// SrcDescriptorPattern locates the descriptor file to publish. When
	// empty, the descriptor is rendered from the in-memory descriptor.
	SrcDescriptorPattern string
}

// Result describes a successful publication.
type Result struct {
	Revision module.RevisionID

	// Published are the artifacts written to the destination.
	Published []module.Artifact

	// Missing are the artifacts no source pattern had a file for.
	Missing []module.Artifact
}

// Publisher publishes module revisions.
type Publisher struct {
	logger *slog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithLogger sets the publisher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New returns a Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish writes md's artifacts and then its descriptor to dest. Each
// artifact is read from the first of artifactPatterns that names an
// existing file; artifacts found under none are reported as missing, not
// as errors. The descriptor is written last so a revision only becomes
// visible once its artifacts are in place.
func (p *Publisher) Publish(ctx context.Context, md *module.Descriptor, artifactPatterns []string, dest repository.Publisher, opts Options) (*Result, error) {
	rev := md.Revision
	res := &Result{Revision: rev}

	data := descriptor.Format(md)
	if opts.SrcDescriptorPattern != "" {
		src := cache.Substitute(opts.SrcDescriptorPattern, rev, module.Artifact{})
		raw, err := os.ReadFile(src)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("publish %s: %w: %s", rev, ErrMissingDescriptor, src)
			}
			return nil, fmt.Errorf("publish %s: read descriptor: %w", rev, err)
		}
		data = raw
	}

	for _, a := range md.Artifacts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("publish %s: %w", rev, err)
		}
		src, ok := locate(artifactPatterns, rev, a)
		if !ok {
			p.logger.Debug("artifact not found in sources", "module", rev.String(), "artifact", a.Name)
			res.Missing = append(res.Missing, a)
			continue
		}
		if err := p.publishArtifact(ctx, dest, rev, a, src, opts.Overwrite); err != nil {
			return nil, fmt.Errorf("publish %s: %w", rev, err)
		}
		res.Published = append(res.Published, a)
	}

	if err := dest.PutDescriptor(ctx, md, data, opts.Overwrite); err != nil {
		return nil, fmt.Errorf("publish %s: %w", rev, err)
	}
	p.logger.Info("published", "module", rev.String(), "repository", dest.Name(), "artifacts", len(res.Published))
	return res, nil
}

func (p *Publisher) publishArtifact(ctx context.Context, dest repository.Publisher, rev module.RevisionID, a module.Artifact, src string, overwrite bool) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()
	return dest.PutArtifact(ctx, rev, a, f, overwrite)
}

// locate returns the first pattern substitution naming an existing file.
func locate(patterns []string, rev module.RevisionID, a module.Artifact) (string, bool) {
	for _, pattern := range patterns {
		p := cache.Substitute(pattern, rev, a)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}
