package failure

import "fmt"

// ErrDeferredFailure is raised by RaiseAll when there is more than one
// record (or zero).
type ErrDeferredFailure struct {
	Count int
}

func (e *ErrDeferredFailure) Error() string {
	switch e.Count {
	case 0:
		return "failure: no errors to raise"
	case 1:
		return "failure: one error occurred"
	default:
		return fmt.Sprintf("failure: %d errors occurred", e.Count)
	}
}
