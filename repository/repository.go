// Package repository defines the contract depot requires from module
// repositories and ships three backends:
//
//   - Filesystem: a local directory, readable and writable
//   - HTTP: a read-only remote repository served over http(s)
//   - Chain: an ordered list of repositories with first-match-wins lookup
//
// Memory is an in-process repository used by tests and by callers that
// assemble modules programmatically.
//
// All backends share one layout, relative to the repository root:
//
//	{org}/{name}/{rev}/module.star
//	{org}/{name}/{rev}/{type}s/{artifact}-{rev}.{ext}
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
)

// Sentinel errors for repository operations.
var (
	// ErrNotFound indicates the requested module, revision or artifact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a publish would overwrite existing content.
	ErrAlreadyExists = errors.New("already exists")

	// ErrReadOnly indicates the repository does not accept publishes.
	ErrReadOnly = errors.New("repository is read-only")
)

// Repository is a source of module descriptors and artifacts.
type Repository interface {
	// Name returns the id the repository is configured under.
	Name() string

	ListOrganizations(ctx context.Context) ([]string, error)
	ListModules(ctx context.Context, org string) ([]string, error)
	ListRevisions(ctx context.Context, id module.ID) ([]string, error)

	// Descriptor returns the parsed descriptor of rev.
	Descriptor(ctx context.Context, rev module.RevisionID) (*module.Descriptor, error)

	// Artifact opens the content of an artifact published by rev.
	Artifact(ctx context.Context, rev module.RevisionID, a module.Artifact) (io.ReadCloser, error)
}

// Publisher is a repository that accepts new content.
type Publisher interface {
	Repository

	// PutDescriptor stores the raw descriptor for md.Revision.
	PutDescriptor(ctx context.Context, md *module.Descriptor, data []byte, overwrite bool) error

	// PutArtifact stores the artifact content for rev.
	PutArtifact(ctx context.Context, rev module.RevisionID, a module.Artifact, r io.Reader, overwrite bool) error
}

// Error describes a failed repository operation.
type Error struct {
	Op         string
	Repository string
	Target     string
	Err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s in repository %s: %v", e.Op, e.Target, e.Repository, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err indicates missing content.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// DescriptorPath returns the layout path of rev's descriptor.
func DescriptorPath(rev module.RevisionID) string {
	return path.Join(rev.Organization, rev.Name, rev.Revision, descriptor.FileName)
}

// ArtifactPath returns the layout path of an artifact of rev.
func ArtifactPath(rev module.RevisionID, a module.Artifact) string {
	return path.Join(rev.Organization, rev.Name, rev.Revision, a.Type+"s", a.FileName(rev.Revision))
}

// Has reports whether repo holds a descriptor for rev.
func Has(ctx context.Context, repo Repository, rev module.RevisionID) (bool, error) {
	_, err := repo.Descriptor(ctx, rev)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}
