package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/albertocavalcante/go-depot/descriptor"
	"github.com/albertocavalcante/go-depot/module"
)

// Filesystem is a repository stored in a local directory. Reads of parsed
// descriptors are cached; publishes invalidate the cache entry they replace.
type Filesystem struct {
	name     string
	rootPath string
	cache    sync.Map // map[module.RevisionID]*module.Descriptor
}

// NewFilesystem returns a repository rooted at rootPath. The directory is
// created on first publish.
func NewFilesystem(name, rootPath string) *Filesystem {
	return &Filesystem{name: name, rootPath: filepath.Clean(rootPath)}
}

// Name returns the repository id.
func (r *Filesystem) Name() string { return r.name }

// Root returns the repository directory.
func (r *Filesystem) Root() string { return r.rootPath }

func (r *Filesystem) ListOrganizations(ctx context.Context) ([]string, error) {
	return r.listDirs(ctx, r.rootPath)
}

func (r *Filesystem) ListModules(ctx context.Context, org string) ([]string, error) {
	return r.listDirs(ctx, filepath.Join(r.rootPath, org))
}

func (r *Filesystem) ListRevisions(ctx context.Context, id module.ID) ([]string, error) {
	return r.listDirs(ctx, filepath.Join(r.rootPath, id.Organization, id.Name))
}

// listDirs returns the sorted names of subdirectories. A missing directory
// is an empty listing, not an error.
func (r *Filesystem) listDirs(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &Error{Op: "list", Repository: r.name, Target: dir, Err: err}
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Descriptor reads and parses rev's descriptor file.
func (r *Filesystem) Descriptor(ctx context.Context, rev module.RevisionID) (*module.Descriptor, error) {
	if cached, ok := r.cache.Load(rev); ok {
		return cached.(*module.Descriptor), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := filepath.Join(r.rootPath, filepath.FromSlash(DescriptorPath(rev)))
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Op: "read descriptor", Repository: r.name, Target: rev.String(), Err: ErrNotFound}
		}
		return nil, &Error{Op: "read descriptor", Repository: r.name, Target: rev.String(), Err: err}
	}
	md, err := descriptor.Parse(p, data)
	if err != nil {
		return nil, &Error{Op: "parse descriptor", Repository: r.name, Target: rev.String(), Err: err}
	}
	r.cache.Store(rev, md)
	return md, nil
}

// Artifact opens an artifact file. The caller closes the reader.
func (r *Filesystem) Artifact(ctx context.Context, rev module.RevisionID, a module.Artifact) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(r.rootPath, filepath.FromSlash(ArtifactPath(rev, a))))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Op: "open artifact", Repository: r.name, Target: rev.String() + "!" + a.Name, Err: ErrNotFound}
		}
		return nil, &Error{Op: "open artifact", Repository: r.name, Target: rev.String() + "!" + a.Name, Err: err}
	}
	return f, nil
}

// PutDescriptor writes the raw descriptor for md.Revision.
func (r *Filesystem) PutDescriptor(ctx context.Context, md *module.Descriptor, data []byte, overwrite bool) error {
	p := filepath.Join(r.rootPath, filepath.FromSlash(DescriptorPath(md.Revision)))
	if err := r.put(ctx, p, strings.NewReader(string(data)), overwrite); err != nil {
		return &Error{Op: "publish descriptor", Repository: r.name, Target: md.Revision.String(), Err: err}
	}
	r.cache.Delete(md.Revision)
	return nil
}

// PutArtifact writes an artifact file for rev.
func (r *Filesystem) PutArtifact(ctx context.Context, rev module.RevisionID, a module.Artifact, src io.Reader, overwrite bool) error {
	p := filepath.Join(r.rootPath, filepath.FromSlash(ArtifactPath(rev, a)))
	if err := r.put(ctx, p, src, overwrite); err != nil {
		return &Error{Op: "publish artifact", Repository: r.name, Target: rev.String() + "!" + a.Name, Err: err}
	}
	return nil
}

// put writes src to dest through a temporary file renamed into place, so
// readers never observe partial content.
func (r *Filesystem) put(ctx context.Context, dest string, src io.Reader, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			return ErrAlreadyExists
		}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".publish-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// parseFileURL extracts the path from a file:// URL.
// Handles both Unix (file:///path) and Windows (file:///C:/path) formats.
func parseFileURL(url string) (string, error) {
	if !strings.HasPrefix(url, "file://") {
		return "", fmt.Errorf("not a file:// URL: %s", url)
	}
	p := strings.TrimPrefix(url, "file://")
	if len(p) >= 3 && p[0] == '/' && isWindowsDriveLetter(p[1]) && p[2] == ':' {
		p = p[1:]
	}
	return filepath.Clean(p), nil
}

func isWindowsDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

var _ Publisher = (*Filesystem)(nil)
