package descriptor

import (
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-depot/module"
)

// FieldError represents a validation failure for a specific field.
type FieldError struct {
	Field   string // Field path (e.g., "dependencies[0].conf")
	Message string
}

func (e *FieldError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Revision module.RevisionID
	Errors   []*FieldError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("invalid descriptor %s: %s", e.Revision, e.Errors[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid descriptor %s: %d validation errors:", e.Revision, len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&b, "\n  - %s", err.Error())
	}
	return b.String()
}

// Validate checks that md is internally consistent: revision set,
// configuration references resolvable and dependency mappings pointing at
// declared source configurations.
func Validate(md *module.Descriptor) error {
	var errs []*FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, &FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if md.Revision.Revision == "" {
		add("revision", "must not be empty")
	}
	for i, c := range md.Configurations {
		for _, parent := range c.Extends {
			if md.Configuration(parent) == nil {
				add(fmt.Sprintf("configurations[%d].extends", i), "%v %q", module.ErrUnknownConfiguration, parent)
			}
		}
	}
	for i, a := range md.Artifacts {
		for _, c := range a.Confs {
			if c != module.AllConfs && md.Configuration(c) == nil {
				add(fmt.Sprintf("artifacts[%d].confs", i), "%v %q", module.ErrUnknownConfiguration, c)
			}
		}
	}
	for i, d := range md.Dependencies {
		if len(d.ConfMappings) == 0 {
			add(fmt.Sprintf("dependencies[%d].conf", i), "no configuration mapping")
		}
		for _, src := range d.SourceConfs() {
			if src != module.AllConfs && md.Configuration(src) == nil {
				add(fmt.Sprintf("dependencies[%d].conf", i), "%v %q", module.ErrUnknownConfiguration, src)
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return &ValidationErrors{Revision: md.Revision, Errors: errs}
}
