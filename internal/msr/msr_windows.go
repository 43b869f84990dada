//go:build windows

package msr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

// ioctlReadMSR is CTL_CODE(40000, 0x821, METHOD_BUFFERED, FILE_ANY_ACCESS).
const ioctlReadMSR = 40000<<16 | 0x821<<2

// WinRing0 reads registers through the WinRing0 kernel driver. The driver
// reads on whichever processor the calling thread runs on, so every read
// pins the thread to its unit first.
type WinRing0 struct {
	opts    Options
	service *driverService

	mu     sync.Mutex
	handle windows.Handle
	open   bool
}

// New returns the WinRing0 driver channel.
func New(opts Options) Channel {
	return NewWinRing0(opts)
}

// NewWinRing0 returns a WinRing0 channel for the given options.
func NewWinRing0(opts Options) *WinRing0 {
	opts = opts.withDefaults()
	return &WinRing0{
		opts:    opts,
		service: &driverService{ctl: scm{}, name: opts.DriverName, imagePath: opts.DriverPath},
		handle:  windows.InvalidHandle,
	}
}

// Install registers the driver image as a kernel driver service and starts
// it. An already installed service is started but not taken over.
func (w *WinRing0) Install() error {
	return w.service.install()
}

// Open opens the driver's device.
func (w *WinRing0) Open() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	path, err := windows.UTF16PtrFromString(w.opts.DevicePath)
	if err != nil {
		return &LifecycleError{Op: "open", Err: err}
	}
	h, err := windows.CreateFile(path,
		windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return &LifecycleError{Op: "open", Err: fmt.Errorf("%s: %w", w.opts.DevicePath, err)}
	}
	w.handle = h
	w.open = true
	return nil
}

// Close closes the device handle.
func (w *WinRing0) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.open {
		return &LifecycleError{Op: "close", Err: ErrNotOpen}
	}
	err := windows.CloseHandle(w.handle)
	w.handle = windows.InvalidHandle
	w.open = false
	if err != nil {
		return &LifecycleError{Op: "close", Err: err}
	}
	return nil
}

// Uninstall stops and deletes the driver service if Install created it.
func (w *WinRing0) Uninstall() error {
	return w.service.uninstall()
}

// Read reads register addr on the processor selected by unit.
func (w *WinRing0) Read(addr uint32, unit affinity.Unit) (lo, hi uint32, err error) {
	w.mu.Lock()
	h, open := w.handle, w.open
	w.mu.Unlock()
	if !open {
		return 0, 0, &ReadError{Addr: addr, Unit: unit, Err: ErrNotOpen}
	}
	v, err := affinity.Run(affinity.OS{}, unit, func() (uint64, error) {
		var out [8]byte
		var returned uint32
		in := addr
		err := windows.DeviceIoControl(h, ioctlReadMSR,
			(*byte)(unsafe.Pointer(&in)), uint32(unsafe.Sizeof(in)),
			&out[0], uint32(len(out)), &returned, nil)
		if err != nil {
			return 0, err
		}
		if returned != uint32(len(out)) {
			return 0, fmt.Errorf("short read of %d bytes", returned)
		}
		return binary.LittleEndian.Uint64(out[:]), nil
	})
	if err != nil {
		return 0, 0, &ReadError{Addr: addr, Unit: unit, Err: err}
	}
	lo, hi = Split(v)
	return lo, hi, nil
}

// scm controls services through the Windows service control manager.
type scm struct{}

func (scm) with(name string, fn func(*mgr.Service) error) error {
	m, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()
	s, err := m.OpenService(name)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func (c scm) Exists(name string) (bool, error) {
	err := c.with(name, func(*mgr.Service) error { return nil })
	if errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST) {
		return false, nil
	}
	return err == nil, err
}

func (scm) Create(name, imagePath string) error {
	m, err := mgr.Connect()
	if err != nil {
		return err
	}
	defer m.Disconnect()
	s, err := m.CreateService(name, imagePath, mgr.Config{
		ServiceType:  windows.SERVICE_KERNEL_DRIVER,
		StartType:    mgr.StartManual,
		ErrorControl: mgr.ErrorNormal,
		DisplayName:  "picoCoreTemp register driver",
	})
	if err != nil {
		return err
	}
	return s.Close()
}

func (c scm) Start(name string) error {
	return c.with(name, func(s *mgr.Service) error {
		if err := s.Start(); err != nil && !errors.Is(err, windows.ERROR_SERVICE_ALREADY_RUNNING) {
			return err
		}
		return nil
	})
}

func (c scm) Stop(name string) error {
	return c.with(name, func(s *mgr.Service) error {
		if _, err := s.Control(svc.Stop); err != nil && !errors.Is(err, windows.ERROR_SERVICE_NOT_ACTIVE) {
			return err
		}
		return nil
	})
}

func (c scm) Delete(name string) error {
	return c.with(name, (*mgr.Service).Delete)
}
