package platform

import (
	"fmt"
	"runtime"

	"github.com/klauspost/cpuid/v2"
)

// SupportedOS represents supported operating systems
type SupportedOS string

const (
	Linux   SupportedOS = "linux"
	Windows SupportedOS = "windows"
)

// GetOS returns the current operating system
func GetOS() SupportedOS {
	return SupportedOS(runtime.GOOS)
}

// IsSupported returns true if the current OS and architecture are supported
func IsSupported() bool {
	os := GetOS()
	return (os == Linux || os == Windows) && runtime.GOARCH == "amd64"
}

// ValidateSupport returns an error if the current OS is not supported
func ValidateSupport() error {
	if !IsSupported() {
		return fmt.Errorf("unsupported platform: %s/%s. Supported: linux/amd64, windows/amd64",
			runtime.GOOS, runtime.GOARCH)
	}
	return nil
}

// Host summarises the processor this process runs on
type Host struct {
	Vendor         string `json:"vendor"`
	Brand          string `json:"brand"`
	Family         int    `json:"family"`
	Model          int    `json:"model"`
	PhysicalCores  int    `json:"physical_cores"`
	LogicalCores   int    `json:"logical_cores"`
	ThreadsPerCore int    `json:"threads_per_core"`
}

// HostCPU returns the summary of the host processor
func HostCPU() Host {
	return Host{
		Vendor:         cpuid.CPU.VendorID.String(),
		Brand:          cpuid.CPU.BrandName,
		Family:         cpuid.CPU.Family,
		Model:          cpuid.CPU.Model,
		PhysicalCores:  cpuid.CPU.PhysicalCores,
		LogicalCores:   cpuid.CPU.LogicalCores,
		ThreadsPerCore: cpuid.CPU.ThreadsPerCore,
	}
}

// HasTelemetry reports whether the host vendor has temperature registers
// we know how to read
func (h Host) HasTelemetry() bool {
	return h.Vendor == cpuid.Intel.String()
}
