// Package cpuid reads the CPUID leaves needed to identify a logical
// processor: vendor, brand string and the topology fields its APIC id is
// decoded with.
//
// CPUID always answers for the processor the calling thread runs on, so
// [Native] must only be used from a thread pinned to the processor of
// interest.
package cpuid

import (
	"fmt"
)

// Registers holds the output of one CPUID invocation.
type Registers struct {
	EAX, EBX, ECX, EDX uint32
}

// Reader executes CPUID for a leaf and subleaf.
type Reader interface {
	CPUID(leaf, subleaf uint32) Registers
}

// Native executes the CPUID instruction on the current processor. On
// architectures without CPUID it returns all-zero registers.
type Native struct{}

func (Native) CPUID(leaf, subleaf uint32) Registers {
	a, b, c, d := cpuid(leaf, subleaf)
	return Registers{EAX: a, EBX: b, ECX: c, EDX: d}
}

// Query addresses one CPUID leaf and subleaf.
type Query struct {
	Leaf, Subleaf uint32
}

// Table is a recorded set of CPUID answers, for replaying a processor.
// Missing queries answer all zeros.
type Table map[Query]Registers

func (t Table) CPUID(leaf, subleaf uint32) Registers {
	return t[Query{Leaf: leaf, Subleaf: subleaf}]
}

// VendorID enumerates the vendors with dedicated handling.
type VendorID uint8

const (
	VendorUnknown VendorID = iota
	VendorIntel
	VendorAMD
)

// Vendor identifies a CPU vendor. Name carries the raw vendor string of
// unknown vendors and is empty when CPUID did not report one.
type Vendor struct {
	ID   VendorID
	Name string
}

var (
	Intel = Vendor{ID: VendorIntel}
	AMD   = Vendor{ID: VendorAMD}
)

// ParseVendor maps a CPUID vendor string to a Vendor.
func ParseVendor(s string) Vendor {
	switch s {
	case "GenuineIntel":
		return Intel
	case "AuthenticAMD", "HygonGenuine":
		return AMD
	}
	return Vendor{ID: VendorUnknown, Name: s}
}

func (v Vendor) String() string {
	switch v.ID {
	case VendorIntel:
		return "Intel"
	case VendorAMD:
		return "AMD"
	}
	if v.Name == "" {
		return "Unknown"
	}
	return fmt.Sprintf("Unknown(%s)", v.Name)
}

// MarshalText renders the vendor for JSON and YAML output.
func (v Vendor) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}
