// Package cpu groups detected logical processors into the package, core and
// thread hierarchy and gives access to the telemetry of each level.
package cpu

import (
	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/backend"
	"github.com/CristiGvl/picoCoreTemp/internal/cpuid"
)

// DetectedUnit is what probing one logical processor yields.
type DetectedUnit struct {
	Unit      affinity.Unit
	PackageID uint32
	CoreID    uint32
	ThreadID  uint32
	Vendor    cpuid.Vendor
	Model     string
}

// Thread represents one logical processor of a core.
type Thread struct {
	ID   uint32        `json:"id"`
	Unit affinity.Unit `json:"unit"`
}

// Core represents one physical core of a CPU package.
type Core struct {
	ID      uint32          `json:"id"`
	Backend backend.Backend `json:"-"`
	Threads []*Thread       `json:"threads"`
}

// ReadTemperature reads the core temperature in degrees Celsius.
func (c *Core) ReadTemperature() (float64, error) {
	r, err := c.Backend.Read(backend.CoreTemperature)
	if err != nil {
		return 0, err
	}
	if err := r.Err(); err != nil {
		return 0, err
	}
	return r.Value, nil
}

// Temperature returns the core temperature, or false if it is unavailable
// or could not be read.
func (c *Core) Temperature() (float64, bool) {
	t, err := c.ReadTemperature()
	return t, err == nil
}

// Cpu represents one physical CPU package.
type Cpu struct {
	PackageID uint32          `json:"package_id"`
	Vendor    cpuid.Vendor    `json:"vendor"`
	Model     string          `json:"model"`
	Canonical affinity.Unit   `json:"canonical_unit"`
	Backend   backend.Backend `json:"-"`
	Cores     []*Core         `json:"cores"`
}

// PackageTemperature reads the package temperature in degrees Celsius.
func (c *Cpu) PackageTemperature() (float64, error) {
	r, err := c.Backend.Read(backend.PackageTemperature)
	if err != nil {
		return 0, err
	}
	if err := r.Err(); err != nil {
		return 0, err
	}
	return r.Value, nil
}

// Threads returns the number of logical processors of the package.
func (c *Cpu) Threads() int {
	n := 0
	for _, core := range c.Cores {
		n += len(core.Threads)
	}
	return n
}
