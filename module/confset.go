package module

import (
	"slices"
	"strings"
)

// ConfSet is a set of configuration names, or the distinguished "all
// configurations" set that only becomes concrete against a descriptor.
type ConfSet struct {
	all   bool
	names []string
}

// All returns the set of every configuration.
func All() ConfSet {
	return ConfSet{all: true}
}

// Confs returns the explicit set of names, keeping first occurrence order.
func Confs(names ...string) ConfSet {
	s := ConfSet{}
	for _, n := range names {
		if !slices.Contains(s.names, n) {
			s.names = append(s.names, n)
		}
	}
	return s
}

// ParseConfSet parses a comma separated configuration list. Exactly "*" is
// the all set. Elements are trimmed and kept verbatim otherwise.
func ParseConfSet(s string) ConfSet {
	if s == AllConfs {
		return All()
	}
	return Confs(SplitConfs(s)...)
}

// SplitConfs splits a comma separated list and trims every element.
// An empty string yields nil.
func SplitConfs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// MergeConfs joins names the way they are written back into settings: ", ".
func MergeConfs(names []string) string {
	return strings.Join(names, ", ")
}

// IsAll reports whether s is the all set.
func (s ConfSet) IsAll() bool {
	return s.all
}

// Names returns the explicit names, or ["*"] for the all set.
func (s ConfSet) Names() []string {
	if s.all {
		return []string{AllConfs}
	}
	return slices.Clone(s.names)
}

// Len returns the number of explicit names. The all set has no length until
// resolved.
func (s ConfSet) Len() int {
	return len(s.names)
}

// Contains reports whether name is in the set.
func (s ConfSet) Contains(name string) bool {
	return s.all || slices.Contains(s.names, name)
}

// Resolve makes the set concrete: the all set becomes the declared names.
func (s ConfSet) Resolve(declared []string) ConfSet {
	if !s.all {
		return s
	}
	return Confs(declared...)
}

// Difference returns the names of s that are not in other, sorted. Both sets
// must be concrete; an all set on either side is treated by its explicit names.
func (s ConfSet) Difference(other ConfSet) []string {
	out := make([]string, 0, len(s.names))
	for _, n := range s.names {
		if !slices.Contains(other.names, n) {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return out
}

// String returns the merged form of the set.
func (s ConfSet) String() string {
	return MergeConfs(s.Names())
}
