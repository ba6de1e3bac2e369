package repository

import (
	"bytes"
	"context"
	"io"
	"maps"
	"slices"
	"sync"

	"github.com/albertocavalcante/go-depot/module"
)

// Memory is a thread-safe in-memory repository.
type Memory struct {
	name string

	mu          sync.RWMutex
	descriptors map[module.RevisionID]*module.Descriptor
	artifacts   map[string][]byte
	failures    map[module.RevisionID]error
	published   []module.RevisionID
}

// NewMemory creates an empty in-memory repository.
func NewMemory(name string) *Memory {
	return &Memory{
		name:        name,
		descriptors: make(map[module.RevisionID]*module.Descriptor),
		artifacts:   make(map[string][]byte),
		failures:    make(map[module.RevisionID]error),
	}
}

// Name returns the repository id.
func (m *Memory) Name() string { return m.name }

// Add stores md and the content of its artifacts, keyed by artifact name.
// Artifacts without content get a placeholder body.
func (m *Memory) Add(md *module.Descriptor, content map[string][]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descriptors[md.Revision] = md
	for _, a := range md.Artifacts {
		body, ok := content[a.Name]
		if !ok {
			body = []byte(md.Revision.String() + "!" + a.Name)
		}
		m.artifacts[ArtifactPath(md.Revision, a)] = slices.Clone(body)
	}
}

// RemoveArtifact deletes the content of artifact a of rev, leaving its
// declaration in the descriptor.
func (m *Memory) RemoveArtifact(rev module.RevisionID, a module.Artifact) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.artifacts, ArtifactPath(rev, a))
}

// FailDescriptor makes every Descriptor lookup for rev return err.
func (m *Memory) FailDescriptor(rev module.RevisionID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[rev] = err
}

// Published returns the revisions whose descriptors were published, in order.
func (m *Memory) Published() []module.RevisionID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.published)
}

// Len returns the number of stored descriptors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.descriptors)
}

func (m *Memory) ListOrganizations(ctx context.Context) ([]string, error) {
	return m.collect(func(rev module.RevisionID) (string, bool) { return rev.Organization, true }), nil
}

func (m *Memory) ListModules(ctx context.Context, org string) ([]string, error) {
	return m.collect(func(rev module.RevisionID) (string, bool) { return rev.Name, rev.Organization == org }), nil
}

func (m *Memory) ListRevisions(ctx context.Context, id module.ID) ([]string, error) {
	return m.collect(func(rev module.RevisionID) (string, bool) { return rev.Revision, rev.ID == id }), nil
}

func (m *Memory) collect(pick func(module.RevisionID) (string, bool)) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for rev := range m.descriptors {
		if v, ok := pick(rev); ok {
			seen[v] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

func (m *Memory) Descriptor(ctx context.Context, rev module.RevisionID) (*module.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.failures[rev]; ok {
		return nil, &Error{Op: "read descriptor", Repository: m.name, Target: rev.String(), Err: err}
	}
	md, ok := m.descriptors[rev]
	if !ok {
		return nil, &Error{Op: "read descriptor", Repository: m.name, Target: rev.String(), Err: ErrNotFound}
	}
	return md, nil
}

func (m *Memory) Artifact(ctx context.Context, rev module.RevisionID, a module.Artifact) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	body, ok := m.artifacts[ArtifactPath(rev, a)]
	if !ok {
		return nil, &Error{Op: "open artifact", Repository: m.name, Target: rev.String() + "!" + a.Name, Err: ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

// PutDescriptor stores md. The raw data is not retained.
func (m *Memory) PutDescriptor(ctx context.Context, md *module.Descriptor, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.descriptors[md.Revision]; exists && !overwrite {
		return &Error{Op: "publish descriptor", Repository: m.name, Target: md.Revision.String(), Err: ErrAlreadyExists}
	}
	m.descriptors[md.Revision] = md
	m.published = append(m.published, md.Revision)
	return nil
}

func (m *Memory) PutArtifact(ctx context.Context, rev module.RevisionID, a module.Artifact, r io.Reader, overwrite bool) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return &Error{Op: "publish artifact", Repository: m.name, Target: rev.String() + "!" + a.Name, Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ArtifactPath(rev, a)
	if _, exists := m.artifacts[key]; exists && !overwrite {
		return &Error{Op: "publish artifact", Repository: m.name, Target: rev.String() + "!" + a.Name, Err: ErrAlreadyExists}
	}
	m.artifacts[key] = body
	return nil
}

var _ Publisher = (*Memory)(nil)
