// Package msr provides read access to model-specific registers of individual
// logical processors through a privileged channel: the Linux msr device
// files, or the WinRing0 kernel driver on Windows.
package msr

import (
	"fmt"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
)

// Register addresses used by the temperature backends.
const (
	IA32ThermStatus        uint32 = 0x19C
	IA32TemperatureTarget  uint32 = 0x1A2
	IA32PackageThermStatus uint32 = 0x1B1
)

// Channel is a privileged register channel. Install and Open must succeed
// before Read; Close and Uninstall tear it down again.
type Channel interface {
	Install() error
	Open() error
	Close() error
	Uninstall() error
	// Read returns the low and high 32 bits of the register at addr, as seen
	// by the processor unit.
	Read(addr uint32, unit affinity.Unit) (lo, hi uint32, err error)
}

// ReadError reports a failed register read.
type ReadError struct {
	Addr uint32
	Unit affinity.Unit
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("msr: reading %#x on %s: %v", e.Addr, e.Unit, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// LifecycleError reports a failed install, open, close or uninstall.
type LifecycleError struct {
	Op  string
	Err error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("msr: %s: %v", e.Op, e.Err)
}

func (e *LifecycleError) Unwrap() error { return e.Err }

// Split returns the low and high halves of a 64-bit register value.
func Split(v uint64) (lo, hi uint32) {
	return uint32(v), uint32(v >> 32)
}
