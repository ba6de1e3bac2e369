package session

import (
	"fmt"
	"sync"
)

// Kind is the kind of value stored under a registry key.
type Kind uint8

const (
	// KindReport keys a *report.Report.
	KindReport Kind = iota + 1
	// KindDescriptor keys the resolved *module.Descriptor.
	KindDescriptor
	// KindConfs keys the resolved configuration names, a []string.
	KindConfs
)

func (k Kind) String() string {
	switch k {
	case KindReport:
		return "report"
	case KindDescriptor:
		return "descriptor"
	case KindConfs:
		return "confs"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Key addresses a registry value. A global key has no organization or
// module and holds the value of the most recent resolution kept globally.
type Key struct {
	Kind         Kind
	Organization string
	Module       string
	Global       bool
}

// ModuleKey returns the key of kind scoped to org#module.
func ModuleKey(kind Kind, org, module string) Key {
	return Key{Kind: kind, Organization: org, Module: module}
}

// GlobalKey returns the global key of kind.
func GlobalKey(kind Kind) Key {
	return Key{Kind: kind, Global: true}
}

func (k Key) String() string {
	if k.Global {
		return k.Kind.String()
	}
	return k.Kind.String() + "[" + k.Organization + "#" + k.Module + "]"
}

// Registry is a session-scoped store shared by every participant of a
// session. Writes overwrite; entries are never removed. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	values map[Key]any
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{values: make(map[Key]any)}
}

// Put stores v under k, replacing any previous value.
func (r *Registry) Put(k Key, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[k] = v
}

// Get returns the value stored under k.
func (r *Registry) Get(k Key) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[k]
	return v, ok
}

// Len returns the number of stored keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.values)
}

// lookup returns the value of kind for org#module when both are given and
// a value exists, falling back to the global value unless strict.
func lookup[T any](r *Registry, kind Kind, org, module string, strict bool) (T, bool) {
	if org != "" && module != "" {
		if v, ok := r.Get(ModuleKey(kind, org, module)); ok {
			if t, ok := v.(T); ok {
				return t, true
			}
		}
	}
	if !strict {
		if v, ok := r.Get(GlobalKey(kind)); ok {
			if t, ok := v.(T); ok {
				return t, true
			}
		}
	}
	var zero T
	return zero, false
}
