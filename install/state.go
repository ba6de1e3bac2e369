package install

import "fmt"

// State is a stage of an install.
type State int

// Install stages, in order. Aborted ends an install that failed before Done.
const (
	Idle State = iota
	RepositoriesResolved
	GraphBuilt
	Resolving
	Downloading
	Publishing
	Reporting
	Done
	Aborted
)

var stateNames = [...]string{
	Idle:                 "idle",
	RepositoriesResolved: "repositories-resolved",
	GraphBuilt:           "graph-built",
	Resolving:            "resolving",
	Downloading:          "downloading",
	Publishing:           "publishing",
	Reporting:            "reporting",
	Done:                 "done",
	Aborted:              "aborted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Done || s == Aborted
}

// StateHook observes install state transitions.
type StateHook func(from, to State)

// tracker records the state of one install and notifies the hook.
type tracker struct {
	state State
	hook  StateHook
}

func (t *tracker) to(next State) {
	prev := t.state
	t.state = next
	if t.hook != nil {
		t.hook(prev, next)
	}
}
