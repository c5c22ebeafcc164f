package supervisor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSpawn matches any failure to launch the backend executable.
	ErrSpawn = errors.New("backend spawn failed")
	// ErrTimeout matches a start that did not observe readiness in time.
	ErrTimeout = errors.New("backend startup timeout")
	// ErrAlreadyStarted is returned when Start is called outside the idle state.
	ErrAlreadyStarted = errors.New("backend already started")
	// ErrStopped is returned by Start when Stop interrupted the startup race.
	ErrStopped = errors.New("backend stopped during startup")
)

// SpawnError wraps the OS error returned while launching the backend.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start backend %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// TimeoutError reports that readiness was not observed within After.
type TimeoutError struct {
	After  time.Duration
	Marker string
}

func (e *TimeoutError) Error() string {
	if e.Marker == "" {
		return fmt.Sprintf("backend not ready within %s", e.After)
	}
	return fmt.Sprintf("backend not ready within %s (waiting for %q)", e.After, e.Marker)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
