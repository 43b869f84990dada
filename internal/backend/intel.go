package backend

import (
	"errors"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/cpuid"
	"github.com/CristiGvl/picoCoreTemp/internal/msr"
)

const (
	// DefaultTjMax is used when the temperature target cannot be read.
	DefaultTjMax = 100.0

	thermalValid     = 1 << 31
	thermalDeltaMask = 0x7f
	thermalSlope     = 1.0
)

// Intel reads the digital thermal sensor: IA32_PACKAGE_THERM_STATUS for
// package scope, IA32_THERM_STATUS for core scope.
type Intel struct {
	ch         msr.Channel
	scope      Scope
	unit       affinity.Unit
	tjMax      float64
	calibrated bool
}

// NewIntel returns an Intel backend bound to unit. TjMax is read once from
// IA32_TEMPERATURE_TARGET on unit; DefaultTjMax is used if that fails or
// reports zero.
func NewIntel(ch msr.Channel, scope Scope, unit affinity.Unit) *Intel {
	b := &Intel{ch: ch, scope: scope, unit: unit, tjMax: DefaultTjMax}
	if tj, err := ReadTjMax(ch, unit); err == nil {
		b.tjMax = tj
		b.calibrated = true
	}
	return b
}

// ErrNoTjMax is returned for a temperature target of zero, which
// hypervisors commonly report instead of the real target.
var ErrNoTjMax = errors.New("temperature target not reported")

// ReadTjMax reads the temperature target (bits 23:16 of
// IA32_TEMPERATURE_TARGET) on unit.
func ReadTjMax(ch msr.Channel, unit affinity.Unit) (float64, error) {
	eax, _, err := ch.Read(msr.IA32TemperatureTarget, unit)
	if err != nil {
		return 0, err
	}
	tj := (eax >> 16) & 0xff
	if tj == 0 {
		return 0, ErrNoTjMax
	}
	return float64(tj), nil
}

// Temperature converts a thermal status register to degrees Celsius below
// tjMax. A clear validity bit yields ErrUnknownValue.
func Temperature(eax uint32, tjMax float64) (float64, error) {
	if eax&thermalValid == 0 {
		return 0, ErrUnknownValue
	}
	delta := float64((eax >> 16) & thermalDeltaMask)
	return tjMax - thermalSlope*delta, nil
}

func (b *Intel) Vendor() cpuid.Vendor { return cpuid.Intel }
func (b *Intel) Scope() Scope { return b.scope }
func (b *Intel) Unit() affinity.Unit { return b.unit }

// TjMax returns the calibration maximum in use and whether it was read from
// the processor.
func (b *Intel) TjMax() (float64, bool) {
	return b.tjMax, b.calibrated
}

func (b *Intel) register(c Capability) (uint32, bool) {
	switch {
	case c == PackageTemperature && b.scope == ScopePackage:
		return msr.IA32PackageThermStatus, true
	case c == CoreTemperature && b.scope == ScopeCore:
		return msr.IA32ThermStatus, true
	}
	return 0, false
}

func (b *Intel) Supports(c Capability) bool {
	_, ok := b.register(c)
	return ok
}

func (b *Intel) Read(c Capability) (Reading, error) {
	addr, ok := b.register(c)
	if !ok {
		return unavailable(c), nil
	}
	eax, _, err := b.ch.Read(addr, b.unit)
	if err != nil {
		return Reading{Capability: c}, err
	}
	t, err := Temperature(eax, b.tjMax)
	if err != nil {
		return Reading{Capability: c}, err
	}
	return Reading{Capability: c, Value: t, Available: true}, nil
}
