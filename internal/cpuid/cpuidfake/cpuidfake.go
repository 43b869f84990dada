// Package cpuidfake builds recorded CPUID tables describing synthetic
// processors, for replaying topology detection in tests.
package cpuidfake

import (
	"encoding/binary"

	"github.com/CristiGvl/picoCoreTemp/internal/cpuid"
	"github.com/CristiGvl/picoCoreTemp/internal/topology"
)

const (
	leafExtendedTopology = 0xb
	leafBrandFirst       = 0x80000002
	leafCapacity         = 0x80000008
)

func words(s string, n int) []uint32 {
	b := make([]byte, 4*n)
	copy(b, s)
	w := make([]uint32, n)
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return w
}

// Machine returns a table answering the vendor leaf with vendor and maxLeaf.
// A non-empty brand also fills in the brand string leaves.
func Machine(vendor, brand string, maxLeaf uint32) cpuid.Table {
	v := words(vendor, 3)
	t := cpuid.Table{
		{Leaf: 0}: {EAX: maxLeaf, EBX: v[0], EDX: v[1], ECX: v[2]},
	}
	if brand == "" {
		return t
	}
	t[cpuid.Query{Leaf: 0x80000000}] = cpuid.Registers{EAX: leafCapacity}
	b := words(brand, 12)
	for i := uint32(0); i < 3; i++ {
		t[cpuid.Query{Leaf: leafBrandFirst + i}] = cpuid.Registers{
			EAX: b[4*i], EBX: b[4*i+1], ECX: b[4*i+2], EDX: b[4*i+3],
		}
	}
	return t
}

// Extended adds SMT and core levels with the given shifts to t, answering the
// x2APIC id of ids. It panics if ids do not fit the shifts.
func Extended(t cpuid.Table, ids topology.IDs, smtShift, coreShift uint8) cpuid.Table {
	levels := []topology.Level{
		{Type: topology.LevelSMT, Shift: smtShift},
		{Type: topology.LevelCore, Shift: coreShift},
	}
	id, err := topology.EncodeExtended(ids, levels)
	if err != nil {
		panic(err)
	}
	for sub, l := range levels {
		t[cpuid.Query{Leaf: leafExtendedTopology, Subleaf: uint32(sub)}] = cpuid.Registers{
			EAX: uint32(l.Shift),
			EBX: 1,
			ECX: uint32(l.Type)<<8 | uint32(sub),
			EDX: id,
		}
	}
	return t
}

// IntelExtended is an Intel processor reporting ids through the extended
// topology leaf.
func IntelExtended(brand string, ids topology.IDs, smtShift, coreShift uint8) cpuid.Table {
	return Extended(Machine("GenuineIntel", brand, leafExtendedTopology), ids, smtShift, coreShift)
}
