// Package msrfake provides a scripted register channel for tests.
package msrfake

import (
	"errors"
	"fmt"
	"sync"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/msr"
)

// Key addresses one register of one processor.
type Key struct {
	Addr uint32
	Unit affinity.Unit
}

// Channel answers register reads from a table of values. Reads of registers
// without a value fail. Lifecycle steps fail when the corresponding Fail
// field is set. Channel is safe for concurrent use.
type Channel struct {
	mu sync.Mutex

	values map[Key]uint64
	errs   map[Key]error

	FailInstall   error
	FailOpen      error
	FailClose     error
	FailUninstall error

	installed bool
	open      bool
	calls     []string
	reads     []Key
}

// New returns an empty fake channel.
func New() *Channel {
	return &Channel{values: map[Key]uint64{}, errs: map[Key]error{}}
}

// Set scripts the 64-bit value of register addr on unit.
func (c *Channel) Set(addr uint32, unit affinity.Unit, value uint64) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[Key{addr, unit}] = value
	delete(c.errs, Key{addr, unit})
	return c
}

// SetError scripts a failing read of register addr on unit.
func (c *Channel) SetError(addr uint32, unit affinity.Unit, err error) *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[Key{addr, unit}] = err
	return c
}

func (c *Channel) step(name string, fail error, apply func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	if fail != nil {
		return &msr.LifecycleError{Op: name, Err: fail}
	}
	apply()
	return nil
}

func (c *Channel) Install() error {
	return c.step("install", c.FailInstall, func() { c.installed = true })
}

func (c *Channel) Open() error {
	return c.step("open", c.FailOpen, func() { c.open = true })
}

func (c *Channel) Close() error {
	return c.step("close", c.FailClose, func() { c.open = false })
}

func (c *Channel) Uninstall() error {
	return c.step("uninstall", c.FailUninstall, func() { c.installed = false })
}

// Read returns the scripted value of addr on unit.
func (c *Channel) Read(addr uint32, unit affinity.Unit) (lo, hi uint32, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key{addr, unit}
	c.reads = append(c.reads, key)
	if !c.open {
		return 0, 0, &msr.ReadError{Addr: addr, Unit: unit, Err: msr.ErrNotOpen}
	}
	if err := c.errs[key]; err != nil {
		return 0, 0, &msr.ReadError{Addr: addr, Unit: unit, Err: err}
	}
	v, ok := c.values[key]
	if !ok {
		return 0, 0, &msr.ReadError{Addr: addr, Unit: unit, Err: errors.New("no such register")}
	}
	lo, hi = msr.Split(v)
	return lo, hi, nil
}

// Calls returns the lifecycle steps invoked so far, in order.
func (c *Channel) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// Reads returns the register reads issued so far, in order.
func (c *Channel) Reads() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Key(nil), c.reads...)
}

// Installed reports whether the channel is installed.
func (c *Channel) Installed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.installed
}

// IsOpen reports whether the channel is open.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (k Key) String() string {
	return fmt.Sprintf("%#x@%s", k.Addr, k.Unit)
}

var _ msr.Channel = (*Channel)(nil)
