package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/albertocavalcante/go-depot/report"
	"github.com/albertocavalcante/go-depot/repository"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding file values,
// e.g. DEPOT_CACHE or DEPOT_DEFAULT_STATUS.
const EnvPrefix = "DEPOT"

// Repository types accepted in settings files.
const (
	TypeFile  = "file"
	TypeHTTP  = "http"
	TypeChain = "chain"
)

// File is the on-disk shape of a settings file.
type File struct {
	Cache             string                      `mapstructure:"cache"`
	DefaultStatus     string                      `mapstructure:"default_status"`
	DefaultMatcher    string                      `mapstructure:"default_matcher"`
	DefaultRepository string                      `mapstructure:"default_repository"`
	Timeout           time.Duration               `mapstructure:"timeout"`
	Repositories      map[string]RepositoryConfig `mapstructure:"repositories"`
	Report            ReportConfig                `mapstructure:"report"`
}

// RepositoryConfig declares one repository.
type RepositoryConfig struct {
	Type  string   `mapstructure:"type"`
	URL   string   `mapstructure:"url"`
	Path  string   `mapstructure:"path"`
	Chain []string `mapstructure:"chain"`
}

// ReportConfig selects the report outputters by name.
type ReportConfig struct {
	Outputters []string `mapstructure:"outputters"`
}

// Load reads a settings file (YAML, JSON or TOML, chosen by extension)
// and builds Settings from it. Environment variables prefixed with
// EnvPrefix override top-level values. Relative paths are resolved
// against the file's directory.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetDefault("default_status", DefaultStatus)
	v.SetDefault("default_matcher", DefaultMatcher)
	v.SetDefault("timeout", repository.DefaultRequestTimeout)
	v.SetDefault("report.outputters", []string{"json"})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}
	s, err := f.Build(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("load settings %s: %w", path, err)
	}
	return s, nil
}

// Build creates Settings from f. baseDir anchors relative paths.
func (f *File) Build(baseDir string) (*Settings, error) {
	repos, err := f.repositories(baseDir)
	if err != nil {
		return nil, err
	}

	opts := []Option{
		WithCacheDir(resolvePath(baseDir, f.Cache)),
		WithDefaultRepository(f.DefaultRepository),
		WithRepository(repos...),
	}
	if f.DefaultStatus != "" {
		opts = append(opts, WithDefaultStatus(f.DefaultStatus))
	}
	if f.DefaultMatcher != "" {
		opts = append(opts, WithDefaultMatcher(f.DefaultMatcher))
	}
	for _, name := range f.Report.Outputters {
		o, err := report.ByName(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
		}
		opts = append(opts, WithOutputters(o))
	}
	return New(opts...)
}

// repositories instantiates the declared repositories. Chains may refer to
// any other repository, including chains, as long as no cycle forms.
func (f *File) repositories(baseDir string) ([]repository.Repository, error) {
	built := make(map[string]repository.Repository)
	var chains []string
	for _, name := range sortedKeys(f.Repositories) {
		rc := f.Repositories[name]
		switch rc.Type {
		case TypeFile:
			root := rc.Path
			if root == "" && rc.URL != "" {
				p, err := repository.Open(name, rc.URL, f.Timeout)
				if err != nil {
					return nil, fmt.Errorf("%w: repository %q: %w", ErrInvalidSettings, name, err)
				}
				built[name] = p
				continue
			}
			if root == "" {
				return nil, fmt.Errorf("%w: repository %q: file repositories need a path", ErrInvalidSettings, name)
			}
			built[name] = repository.NewFilesystem(name, resolvePath(baseDir, root))
		case TypeHTTP:
			if rc.URL == "" {
				return nil, fmt.Errorf("%w: repository %q: http repositories need a url", ErrInvalidSettings, name)
			}
			built[name] = repository.NewHTTP(name, rc.URL, repository.WithTimeout(f.Timeout))
		case TypeChain:
			if len(rc.Chain) == 0 {
				return nil, fmt.Errorf("%w: repository %q: chains need at least one member", ErrInvalidSettings, name)
			}
			chains = append(chains, name)
		default:
			return nil, fmt.Errorf("%w: repository %q: unknown type %q (want %s, %s or %s)", ErrInvalidSettings, name, rc.Type, TypeFile, TypeHTTP, TypeChain)
		}
	}

	// Build chains whose members all exist until no progress is made.
	for len(chains) > 0 {
		var pending []string
		for _, name := range chains {
			members, ok := lookupAll(built, f.Repositories[name].Chain)
			if !ok {
				pending = append(pending, name)
				continue
			}
			c, err := repository.NewChain(name, members...)
			if err != nil {
				return nil, fmt.Errorf("%w: repository %q: %w", ErrInvalidSettings, name, err)
			}
			built[name] = c
		}
		if len(pending) == len(chains) {
			return nil, fmt.Errorf("%w: chains %s reference unknown repositories or each other in a cycle", ErrInvalidSettings, strings.Join(pending, ", "))
		}
		chains = pending
	}

	out := make([]repository.Repository, 0, len(built))
	for _, name := range sortedKeys(built) {
		out = append(out, built[name])
	}
	return out, nil
}

func lookupAll(built map[string]repository.Repository, names []string) ([]repository.Repository, bool) {
	out := make([]repository.Repository, 0, len(names))
	for _, n := range names {
		r, ok := built[n]
		if !ok {
			return nil, false
		}
		out = append(out, r)
	}
	return out, true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// resolvePath expands a leading ~ and anchors relative paths at baseDir.
func resolvePath(baseDir, p string) string {
	if p == "" {
		return ""
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	return filepath.Clean(p)
}
