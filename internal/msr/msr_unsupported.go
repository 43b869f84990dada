//go:build !linux && !windows

package msr

import (
	"fmt"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
)

// Unsupported is the channel for platforms without register access.
type Unsupported struct{}

// New returns a channel that fails every operation.
func New(Options) Channel {
	return Unsupported{}
}

var errUnsupported = fmt.Errorf("register access not supported on this platform")

func (Unsupported) Install() error { return &LifecycleError{Op: "install", Err: errUnsupported} }
func (Unsupported) Open() error { return &LifecycleError{Op: "open", Err: errUnsupported} }
func (Unsupported) Close() error { return &LifecycleError{Op: "close", Err: errUnsupported} }
func (Unsupported) Uninstall() error { return &LifecycleError{Op: "uninstall", Err: errUnsupported} }

func (Unsupported) Read(addr uint32, unit affinity.Unit) (uint32, uint32, error) {
	return 0, 0, &ReadError{Addr: addr, Unit: unit, Err: errUnsupported}
}
