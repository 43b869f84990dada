package msr

import "errors"

// ErrNotOpen is returned by reads on a channel that is not open.
var ErrNotOpen = errors.New("channel not open")

// Options configure the platform channel returned by [New].
type Options struct {
	// DeviceRoot is the directory holding the per-CPU msr device files on
	// Linux, usually /dev/cpu.
	DeviceRoot string
	// Modprobe is the command used to load and unload the Linux msr module.
	Modprobe string

	// DriverName is the Windows service name of the kernel driver.
	DriverName string
	// DriverPath is the path to the signed driver image (.sys) on Windows.
	DriverPath string
	// DevicePath is the Windows device the driver exposes.
	DevicePath string
}

// DefaultOptions returns the stock settings for the current platform.
func DefaultOptions() Options {
	return Options{
		DeviceRoot: "/dev/cpu",
		Modprobe:   "modprobe",
		DriverName: "WinRing0_1_2_0",
		DevicePath: `\\.\WinRing0_1_2_0`,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DeviceRoot == "" {
		o.DeviceRoot = d.DeviceRoot
	}
	if o.Modprobe == "" {
		o.Modprobe = d.Modprobe
	}
	if o.DriverName == "" {
		o.DriverName = d.DriverName
	}
	if o.DevicePath == "" {
		o.DevicePath = d.DevicePath
	}
	return o
}
