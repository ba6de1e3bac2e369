package repository

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Open creates a repository for a URL. file:// URLs yield a Filesystem
// repository (the directory must exist), http:// and https:// an HTTP one.
func Open(name, rawURL string, timeout time.Duration) (Repository, error) {
	switch {
	case strings.HasPrefix(rawURL, "file://"):
		p, err := parseFileURL(rawURL)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("local repository path does not exist: %s", p)
			}
			return nil, fmt.Errorf("cannot access local repository path %s: %w", p, err)
		}
		return NewFilesystem(name, p), nil
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return NewHTTP(name, rawURL, WithTimeout(timeout)), nil
	}
	return nil, fmt.Errorf("unsupported repository URL %q: expected file://, http:// or https://", rawURL)
}
