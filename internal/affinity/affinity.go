// Package affinity enumerates the logical processors the OS lets this process
// schedule on, and pins OS threads to individual processors.
//
// A logical processor is addressed as a [Unit]: a processor group plus a
// single-bit mask within that group. On Linux the group is the index of the
// 64-bit word of the CPU set, so CPU n is group n/64, bit n%64. On Windows
// groups are the native processor groups.
package affinity

import (
	"fmt"
	"math/bits"
	"slices"
)

// Unit identifies exactly one logical processor.
type Unit struct {
	Group uint16 `json:"group"`
	Mask  uint64 `json:"mask"`
}

// Valid reports whether the unit has exactly one bit set.
func (u Unit) Valid() bool {
	return u.Mask != 0 && u.Mask&(u.Mask-1) == 0
}

// Bit returns the index of the unit's bit within its group.
func (u Unit) Bit() int {
	return bits.TrailingZeros64(u.Mask)
}

// CPU returns the flat processor number, group*64 + bit.
func (u Unit) CPU() int {
	return int(u.Group)*64 + u.Bit()
}

// Compare orders units by group, then by mask.
func (u Unit) Compare(other Unit) int {
	switch {
	case u.Group < other.Group:
		return -1
	case u.Group > other.Group:
		return 1
	case u.Mask < other.Mask:
		return -1
	case u.Mask > other.Mask:
		return 1
	}
	return 0
}

// Less reports whether u sorts before other.
func (u Unit) Less(other Unit) bool {
	return u.Compare(other) < 0
}

// AffinityMask returns the affinity mask containing only this unit.
func (u Unit) AffinityMask() Mask {
	m := make(Mask, int(u.Group)+1)
	m[u.Group] = u.Mask
	return m
}

func (u Unit) String() string {
	return fmt.Sprintf("%d:%#x", u.Group, u.Mask)
}

// UnitOf returns the unit for the flat processor number cpu.
func UnitOf(cpu int) Unit {
	return Unit{Group: uint16(cpu / 64), Mask: uint64(1) << (cpu % 64)}
}

// Min returns the smaller of two units.
func Min(a, b Unit) Unit {
	if b.Less(a) {
		return b
	}
	return a
}

// Flatten splits a group affinity mask into one Unit per set bit, lowest bit
// first.
func Flatten(group uint16, mask uint64) []Unit {
	units := make([]Unit, 0, bits.OnesCount64(mask))
	for mask != 0 {
		lsb := mask & -mask
		units = append(units, Unit{Group: group, Mask: lsb})
		mask &^= lsb
	}
	return units
}

// Sort orders units in place by group, then mask.
func Sort(units []Unit) {
	slices.SortFunc(units, Unit.Compare)
}

// Mask is a thread affinity with one 64-bit word per processor group.
type Mask []uint64

// Units flattens the mask into its individual units.
func (m Mask) Units() []Unit {
	var units []Unit
	for group, word := range m {
		units = append(units, Flatten(uint16(group), word)...)
	}
	return units
}

// Empty reports whether no processor is set.
func (m Mask) Empty() bool {
	for _, word := range m {
		if word != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether both masks select the same processors, ignoring
// trailing zero words.
func (m Mask) Equal(other Mask) bool {
	n := max(len(m), len(other))
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(m) {
			a = m[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// Intersect returns the processors present in both masks.
func (m Mask) Intersect(other Mask) Mask {
	n := min(len(m), len(other))
	out := make(Mask, n)
	for i := 0; i < n; i++ {
		out[i] = m[i] & other[i]
	}
	return out
}

func (m Mask) String() string {
	units := m.Units()
	cpus := make([]int, len(units))
	for i, u := range units {
		cpus[i] = u.CPU()
	}
	return fmt.Sprint(cpus)
}
