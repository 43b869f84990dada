//go:build linux

package msr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
)

// Device reads registers through the msr driver's /dev/cpu/<n>/msr files.
// Each file addresses one CPU, so reads need no thread pinning.
type Device struct {
	opts Options

	mu     sync.Mutex
	files  map[int]*os.File
	open   bool
	loaded bool
}

// New returns the msr device channel.
func New(opts Options) Channel {
	return NewDevice(opts)
}

// NewDevice returns a Device for the given options.
func NewDevice(opts Options) *Device {
	return &Device{opts: opts.withDefaults(), files: map[int]*os.File{}}
}

func (d *Device) path(cpu int) string {
	return filepath.Join(d.opts.DeviceRoot, strconv.Itoa(cpu), "msr")
}

// Install loads the msr kernel module unless its device files already exist.
func (d *Device) Install() error {
	if _, err := os.Stat(d.path(0)); err == nil {
		return nil
	}
	out, err := exec.Command(d.opts.Modprobe, "msr").CombinedOutput()
	if err != nil {
		return &LifecycleError{Op: "install", Err: fmt.Errorf("%s msr: %w: %s",
			d.opts.Modprobe, err, strings.TrimSpace(string(out)))}
	}
	d.loaded = true
	return nil
}

// Open checks that the device files are accessible.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, err := os.Open(d.path(0))
	if err != nil {
		return &LifecycleError{Op: "open", Err: err}
	}
	d.files[0] = f
	d.open = true
	return nil
}

// Close closes all device files opened so far.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return &LifecycleError{Op: "close", Err: ErrNotOpen}
	}
	var errs []error
	for cpu, f := range d.files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(d.files, cpu)
	}
	d.open = false
	if err := errors.Join(errs...); err != nil {
		return &LifecycleError{Op: "close", Err: err}
	}
	return nil
}

// Uninstall unloads the msr module if Install loaded it.
func (d *Device) Uninstall() error {
	if !d.loaded {
		return nil
	}
	out, err := exec.Command(d.opts.Modprobe, "-r", "msr").CombinedOutput()
	if err != nil {
		return &LifecycleError{Op: "uninstall", Err: fmt.Errorf("%s -r msr: %w: %s",
			d.opts.Modprobe, err, strings.TrimSpace(string(out)))}
	}
	d.loaded = false
	return nil
}

// Read reads the 64-bit register addr of the CPU selected by unit.
func (d *Device) Read(addr uint32, unit affinity.Unit) (lo, hi uint32, err error) {
	if !unit.Valid() {
		return 0, 0, &ReadError{Addr: addr, Unit: unit, Err: errors.New("unit does not select exactly one processor")}
	}
	f, err := d.file(unit.CPU())
	if err != nil {
		return 0, 0, &ReadError{Addr: addr, Unit: unit, Err: err}
	}
	// ReadAt holds a reference on f; its descriptor stays ours until it returns.
	var buf [8]byte
	if n, err := f.ReadAt(buf[:], int64(addr)); n != len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return 0, 0, &ReadError{Addr: addr, Unit: unit, Err: err}
	}
	lo, hi = Split(binary.LittleEndian.Uint64(buf[:]))
	return lo, hi, nil
}

func (d *Device) file(cpu int) (*os.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return nil, ErrNotOpen
	}
	if f, ok := d.files[cpu]; ok {
		return f, nil
	}
	f, err := os.Open(d.path(cpu))
	if err != nil {
		return nil, err
	}
	d.files[cpu] = f
	return f, nil
}
