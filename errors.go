package photomap

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRoot is returned when an operation requiring a photo root is
	// invoked with none selected. Rejected preconditions surface
	// explicitly; they are never silently ignored.
	ErrNoRoot = errors.New("no photo root selected")
)

// ErrOutsideRoot indicates a scan target outside the session's root.
type ErrOutsideRoot struct {
	Root string
	Dir  string
}

func (e *ErrOutsideRoot) Error() string {
	return fmt.Sprintf("folder %q is outside photo root %q", e.Dir, e.Root)
}

// ErrUnknownGroup indicates a cluster request for a group label that the
// current grouping does not contain.
type ErrUnknownGroup struct {
	Label string
}

func (e *ErrUnknownGroup) Error() string {
	return fmt.Sprintf("unknown group: %q", e.Label)
}
