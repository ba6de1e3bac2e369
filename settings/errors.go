package settings

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for configuration lookups.
var (
	// ErrUnknownRepository indicates a repository id is not configured.
	ErrUnknownRepository = errors.New("unknown repository")

	// ErrUnknownMatcher indicates a matcher id is not registered.
	ErrUnknownMatcher = errors.New("unknown matcher")

	// ErrMissingParameter indicates a required parameter was not supplied.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrInvalidSettings indicates the settings themselves are inconsistent.
	ErrInvalidSettings = errors.New("invalid settings")
)

// ConfigError reports a lookup that cannot be satisfied by the settings.
// It is raised before any side effect takes place.
type ConfigError struct {
	// Kind names what was looked up, in plural ("repositories").
	Kind string

	// Name is the requested id or parameter name.
	Name string

	// Known lists the valid alternatives, sorted. Nil when not applicable.
	Known []string

	Err error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%v %q", e.Err, e.Name)
	if e.Known == nil {
		return msg
	}
	known := strings.Join(e.Known, ", ")
	if known == "" {
		known = "(none)"
	}
	return fmt.Sprintf("%s. Available %s are: %s", msg, e.Kind, known)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// MissingParameter returns the error for a required parameter left empty.
func MissingParameter(name string) error {
	return &ConfigError{Kind: "parameters", Name: name, Err: ErrMissingParameter}
}
