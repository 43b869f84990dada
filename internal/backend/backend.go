// Package backend turns vendor-specific registers into telemetry readings.
//
// Backends are bound to one processor unit and a scope: package backends are
// shared by everything in a CPU package, core backends belong to one core.
// A capability a backend cannot answer yields a Reading that is not
// Available; that is an expected outcome, not an error.
package backend

import (
	"errors"
	"fmt"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/cpuid"
	"github.com/CristiGvl/picoCoreTemp/internal/msr"
)

// Capability is a kind of telemetry a backend may provide.
type Capability uint8

const (
	PackageTemperature Capability = iota
	CoreTemperature
	ThreadLoad
	Power
	Voltage
)

// Capabilities lists all capabilities.
var Capabilities = []Capability{PackageTemperature, CoreTemperature, ThreadLoad, Power, Voltage}

func (c Capability) String() string {
	switch c {
	case PackageTemperature:
		return "package temperature"
	case CoreTemperature:
		return "core temperature"
	case ThreadLoad:
		return "thread load"
	case Power:
		return "power"
	case Voltage:
		return "voltage"
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// Scope is the part of the topology a backend reports on.
type Scope uint8

const (
	ScopePackage Scope = iota
	ScopeCore
)

func (s Scope) String() string {
	if s == ScopeCore {
		return "core"
	}
	return "package"
}

var (
	// ErrUnsupported marks a capability the backend does not provide.
	ErrUnsupported = errors.New("capability unsupported")
	// ErrUnknownValue is returned when a sensor register holds no valid
	// reading.
	ErrUnknownValue = errors.New("unknown value")
)

// Reading is the outcome of reading one capability.
type Reading struct {
	Capability Capability `json:"-"`
	Value      float64    `json:"value"`
	Available  bool       `json:"available"`
}

// Err returns ErrUnsupported, wrapped with the capability, for readings that
// are not available, and nil otherwise.
func (r Reading) Err() error {
	if r.Available {
		return nil
	}
	return fmt.Errorf("%s: %w", r.Capability, ErrUnsupported)
}

func unavailable(c Capability) Reading {
	return Reading{Capability: c}
}

// Backend reads telemetry for one unit and scope.
type Backend interface {
	Vendor() cpuid.Vendor
	Scope() Scope
	// Unit is the processor all register reads are pinned to.
	Unit() affinity.Unit
	Supports(Capability) bool
	Read(Capability) (Reading, error)
}

// New returns the backend for vendor, bound to unit.
func New(ch msr.Channel, vendor cpuid.Vendor, scope Scope, unit affinity.Unit) Backend {
	switch vendor.ID {
	case cpuid.VendorIntel:
		return NewIntel(ch, scope, unit)
	default:
		return &Unsupported{vendor: vendor, scope: scope, unit: unit}
	}
}

// Factory creates backends; Cpu and Core construction go through it.
type Factory func(vendor cpuid.Vendor, scope Scope, unit affinity.Unit) Backend

// NewFactory returns a Factory creating backends on ch.
func NewFactory(ch msr.Channel) Factory {
	return func(vendor cpuid.Vendor, scope Scope, unit affinity.Unit) Backend {
		return New(ch, vendor, scope, unit)
	}
}

// Unsupported is the backend for vendors without telemetry support (AMD and
// unknown vendors): every capability is unavailable.
type Unsupported struct {
	vendor cpuid.Vendor
	scope  Scope
	unit   affinity.Unit
}

func (u *Unsupported) Vendor() cpuid.Vendor { return u.vendor }
func (u *Unsupported) Scope() Scope { return u.scope }
func (u *Unsupported) Unit() affinity.Unit { return u.unit }
func (u *Unsupported) Supports(Capability) bool { return false }
func (u *Unsupported) Read(c Capability) (Reading, error) { return unavailable(c), nil }
