package affinity

import (
	"fmt"
	"runtime"
)

// Scheduler reads and changes the affinity of the calling OS thread. Callers
// must have the goroutine locked to its OS thread (runtime.LockOSThread).
type Scheduler interface {
	ThreadAffinity() (Mask, error)
	SetThreadAffinity(Mask) error
}

// OS is the Scheduler backed by the operating system.
type OS struct{}

// ThreadAffinity returns the affinity of the calling OS thread.
func (OS) ThreadAffinity() (Mask, error) {
	return threadAffinity()
}

// SetThreadAffinity changes the affinity of the calling OS thread.
func (OS) SetThreadAffinity(m Mask) error {
	if m.Empty() {
		return fmt.Errorf("affinity: cannot set an empty affinity mask")
	}
	return setThreadAffinity(m)
}

// UnitQueryError reports that the OS could not list its logical processors.
type UnitQueryError struct {
	Op  string
	Err error
}

func (e *UnitQueryError) Error() string {
	return fmt.Sprintf("affinity: %s: %v", e.Op, e.Err)
}

func (e *UnitQueryError) Unwrap() error { return e.Err }

// Enumerate returns every logical processor this process may be scheduled
// on, sorted by group and mask.
func Enumerate() ([]Unit, error) {
	units, err := enumerate()
	if err != nil {
		return nil, err
	}
	Sort(units)
	return units, nil
}

// Pin binds the calling OS thread to unit and returns a function restoring
// the thread's previous affinity. The goroutine must stay locked to its OS
// thread until restore has been called.
func Pin(s Scheduler, unit Unit) (restore func() error, err error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("affinity: unit %s does not select exactly one processor", unit)
	}
	prev, err := s.ThreadAffinity()
	if err != nil {
		return nil, fmt.Errorf("affinity: reading thread affinity: %w", err)
	}
	if err := s.SetThreadAffinity(unit.AffinityMask()); err != nil {
		return nil, fmt.Errorf("affinity: pinning to %s: %w", unit, err)
	}
	return func() error {
		if err := s.SetThreadAffinity(prev); err != nil {
			return fmt.Errorf("affinity: restoring %s: %w", prev, err)
		}
		return nil
	}, nil
}

// Run calls fn with the calling goroutine locked to an OS thread pinned to
// unit. The thread's previous affinity is restored afterwards, also when fn
// panics.
func Run[T any](s Scheduler, unit Unit, fn func() (T, error)) (result T, err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	restore, err := Pin(s, unit)
	if err != nil {
		return result, err
	}
	defer func() {
		if rerr := restore(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
