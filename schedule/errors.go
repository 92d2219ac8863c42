package schedule

import (
	"errors"
	"fmt"

	"github.com/l1jgo/sched/access"
)

// IncompatibleSubworldError reports a query or component access whose
// descriptor set exceeds the subworld's declared permissions. Always a caller
// error; never retried.
type IncompatibleSubworldError struct {
	Held      access.Set
	Requested access.Set
}

func (e *IncompatibleSubworldError) Error() string {
	return fmt.Sprintf("schedule: subworld %s cannot satisfy %s", e.Held, e.Requested)
}

// IsIncompatibleSubworld reports whether err wraps an IncompatibleSubworldError.
func IsIncompatibleSubworld(err error) bool {
	var target *IncompatibleSubworldError
	return errors.As(err, &target)
}

// SystemFailureError reports that a system body returned an error during
// schedule execution.
type SystemFailureError struct {
	Index int    // registration index of the failed system
	Name  string // system name given at registration
	Err   error
}

func (e *SystemFailureError) Error() string {
	return fmt.Sprintf("schedule: system %d (%s) failed: %v", e.Index, e.Name, e.Err)
}

func (e *SystemFailureError) Unwrap() error { return e.Err }

// MissingResourceError reports that a system declared access to an external
// resource that was not passed to Execute.
type MissingResourceError struct {
	Access access.Access
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("schedule: resource %s not provided to Execute", e.Access.Type())
}

// InvalidResourceError reports a resource passed to Execute that is not a
// pointer. Resources must be pointers so writer systems can mutate them.
type InvalidResourceError struct {
	Value any
}

func (e *InvalidResourceError) Error() string {
	return fmt.Sprintf("schedule: resource %T must be passed as a pointer", e.Value)
}
