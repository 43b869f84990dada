// Package topology decodes APIC identifiers into package, core and thread
// numbers.
//
// Two algorithms are supported: the extended topology enumeration (CPUID leaf
// 0xB, 32-bit x2APIC identifiers with per-level shift values) and the legacy
// scheme for 8-bit initial APIC identifiers, where the field widths are
// derived from vendor capacity information.
package topology

import (
	"fmt"
)

// IDs locates one logical processor in the package/core/thread hierarchy.
type IDs struct {
	Package uint32 `json:"package_id"`
	Core    uint32 `json:"core_id"`
	Thread  uint32 `json:"thread_id"`
}

func (ids IDs) String() string {
	return fmt.Sprintf("pkg %d, core %d, smt %d", ids.Package, ids.Core, ids.Thread)
}

// LevelType is the type of an extended topology level.
type LevelType uint8

const (
	LevelInvalid LevelType = 0
	LevelSMT     LevelType = 1
	LevelCore    LevelType = 2
	LevelModule  LevelType = 3
	LevelTile    LevelType = 4
	LevelDie     LevelType = 5
)

func (t LevelType) String() string {
	switch t {
	case LevelInvalid:
		return "invalid"
	case LevelSMT:
		return "SMT"
	case LevelCore:
		return "core"
	case LevelModule:
		return "module"
	case LevelTile:
		return "tile"
	case LevelDie:
		return "die"
	}
	return fmt.Sprintf("level(%d)", uint8(t))
}

// Level is one extended topology level: its type and the number of low
// x2APIC id bits to shift right to get the id of the next level up.
type Level struct {
	Type  LevelType
	Shift uint8
}

// DecodeError reports an unsupported or inconsistent topology shape.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "topology: " + e.Reason
}

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// lowMask returns a mask of the n lowest bits.
func lowMask(n uint) uint32 {
	return uint32((uint64(1) << n) - 1)
}

// Shifts extracts the SMT and core shift values from the topology levels.
// Any level other than SMT or core is an error.
func Shifts(levels []Level) (smt, core uint, err error) {
	for _, level := range levels {
		switch level.Type {
		case LevelSMT:
			smt = uint(level.Shift)
		case LevelCore:
			core = uint(level.Shift)
		default:
			return 0, 0, decodeErrorf("unsupported topology level type %s", level.Type)
		}
	}
	if core > 32 || smt > 32 {
		return 0, 0, decodeErrorf("shift out of range (smt %d, core %d)", smt, core)
	}
	if core < smt {
		return 0, 0, decodeErrorf("core shift %d below SMT shift %d", core, smt)
	}
	return smt, core, nil
}

// DecodeExtended decodes a 32-bit x2APIC id using extended topology levels.
func DecodeExtended(x2apicID uint32, levels []Level) (IDs, error) {
	smt, core, err := Shifts(levels)
	if err != nil {
		return IDs{}, err
	}
	return split(x2apicID, smt, core), nil
}

// EncodeExtended builds the x2APIC id for ids under the given levels.
func EncodeExtended(ids IDs, levels []Level) (uint32, error) {
	smt, core, err := Shifts(levels)
	if err != nil {
		return 0, err
	}
	return join(ids, smt, core, 32)
}

func split(id uint32, smtShift, coreShift uint) IDs {
	smtMask := lowMask(smtShift)
	coreMask := lowMask(coreShift) ^ smtMask
	var pkg uint32
	if coreShift < 32 {
		pkg = id >> coreShift
	}
	return IDs{
		Package: pkg,
		Core:    (id & coreMask) >> smtShift,
		Thread:  id & smtMask,
	}
}

func join(ids IDs, smtShift, coreShift, width uint) (uint32, error) {
	if ids.Thread > lowMask(smtShift) {
		return 0, decodeErrorf("thread %d does not fit %d bits", ids.Thread, smtShift)
	}
	if ids.Core > lowMask(coreShift-smtShift) {
		return 0, decodeErrorf("core %d does not fit %d bits", ids.Core, coreShift-smtShift)
	}
	if ids.Package > lowMask(width-min(coreShift, width)) {
		return 0, decodeErrorf("package %d does not fit %d bits", ids.Package, width-coreShift)
	}
	var pkg uint32
	if coreShift < 32 {
		pkg = ids.Package << coreShift
	}
	return pkg | ids.Core<<smtShift | ids.Thread, nil
}
