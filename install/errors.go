package install

import (
	"errors"
	"fmt"

	"github.com/albertocavalcante/go-depot/module"
)

// ErrNoSettings indicates an engine was created without settings.
var ErrNoSettings = errors.New("install engine requires settings")

// ErrIncompleteDownload indicates a module was not published because some of
// its artifacts could not be downloaded.
var ErrIncompleteDownload = errors.New("artifacts not downloaded")

// NodeError describes the failure to install one resolved module. Node
// errors are recorded in the report and never abort an install.
type NodeError struct {
	Revision    module.RevisionID
	Destination string
	Err         error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("install %s into %s: %v", e.Revision, e.Destination, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
