// Package probe runs a detection function on every logical processor in
// parallel, each on its own OS thread pinned to that processor.
package probe

import (
	"fmt"
	"runtime"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
)

// Result is the outcome of probing one unit.
type Result[T any] struct {
	Unit  affinity.Unit
	Value T
	Err   error
}

// ThreadFailure reports a worker that could not run its detection function
// to completion: it panicked, or could not be pinned to its unit.
type ThreadFailure struct {
	Unit  affinity.Unit
	Cause any
}

func (e *ThreadFailure) Error() string {
	return fmt.Sprintf("probe: worker for unit %s failed: %v", e.Unit, e.Cause)
}

// Unwrap returns the cause if it is an error.
func (e *ThreadFailure) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}

// Run calls detect once per unit, concurrently, each call on a dedicated OS
// thread pinned to its unit. Worker threads are discarded afterwards. The
// results come in completion order, one per unit.
//
// The calling thread's own affinity is captured before and restored after
// the workers ran, whatever their outcome. Run only returns an error if that
// affinity could not be read or restored.
func Run[T any](s affinity.Scheduler, units []affinity.Unit, detect func(affinity.Unit) (T, error)) (results []Result[T], err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	prev, err := s.ThreadAffinity()
	if err != nil {
		return nil, fmt.Errorf("probe: reading caller affinity: %w", err)
	}
	defer func() {
		if rerr := s.SetThreadAffinity(prev); rerr != nil {
			err = fmt.Errorf("probe: restoring caller affinity %s: %w", prev, rerr)
		}
	}()

	done := make(chan Result[T], len(units))
	for _, unit := range units {
		go work(s, unit, detect, done)
	}
	results = make([]Result[T], 0, len(units))
	for range units {
		results = append(results, <-done)
	}
	return results, nil
}

// work is the body of one worker goroutine. It locks itself to its OS thread
// and never unlocks, so the runtime terminates the pinned thread on return.
func work[T any](s affinity.Scheduler, unit affinity.Unit, detect func(affinity.Unit) (T, error), done chan<- Result[T]) {
	runtime.LockOSThread()

	result := Result[T]{Unit: unit}
	defer func() {
		if r := recover(); r != nil {
			result.Err = &ThreadFailure{Unit: unit, Cause: r}
		}
		done <- result
	}()

	if !unit.Valid() {
		result.Err = &ThreadFailure{Unit: unit, Cause: fmt.Errorf("unit does not select exactly one processor")}
		return
	}
	if err := s.SetThreadAffinity(unit.AffinityMask()); err != nil {
		result.Err = &ThreadFailure{Unit: unit, Cause: err}
		return
	}
	result.Value, result.Err = detect(unit)
}
