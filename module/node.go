package module

import "errors"

// Outcome is the result of resolving one node: Resolved or Failed.
type Outcome interface {
	isOutcome()
}

// Resolved is the outcome of a node whose descriptor was found.
type Resolved struct {
	Descriptor *Descriptor
}

// Failed is the outcome of a node that could not be resolved.
type Failed struct {
	Reason error
}

func (Resolved) isOutcome() {}
func (Failed) isOutcome()   {}

// ResolvedNode is one module revision reached during a resolution.
type ResolvedNode struct {
	Revision RevisionID
	Outcome  Outcome

	// Confs are the configurations of the node activated by its callers.
	Confs []string

	// Evicted is set when conflict management selected another revision of
	// the same module; EvictedBy names it.
	Evicted   bool
	EvictedBy *RevisionID
}

// NewResolvedNode returns a node resolved to md.
func NewResolvedNode(md *Descriptor, confs []string) ResolvedNode {
	return ResolvedNode{Revision: md.Revision, Outcome: Resolved{Descriptor: md}, Confs: confs}
}

// NewFailedNode returns a node that failed to resolve.
func NewFailedNode(rev RevisionID, reason error, confs []string) ResolvedNode {
	if reason == nil {
		reason = errors.New("unresolved")
	}
	return ResolvedNode{Revision: rev, Outcome: Failed{Reason: reason}, Confs: confs}
}

// Descriptor returns the node's descriptor and true, or nil and false when
// the node failed.
func (n ResolvedNode) Descriptor() (*Descriptor, bool) {
	if r, ok := n.Outcome.(Resolved); ok && r.Descriptor != nil {
		return r.Descriptor, true
	}
	return nil, false
}

// Err returns the failure reason, or nil for a resolved node.
func (n ResolvedNode) Err() error {
	if f, ok := n.Outcome.(Failed); ok {
		return f.Reason
	}
	return nil
}

// IsFailed reports whether the node failed to resolve.
func (n ResolvedNode) IsFailed() bool {
	_, ok := n.Descriptor()
	return !ok
}
