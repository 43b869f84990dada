package cpuid

import (
	"encoding/binary"
	"strings"

	"github.com/CristiGvl/picoCoreTemp/internal/topology"
)

const (
	leafVendor           = 0x0
	leafFeatures         = 0x1
	leafCacheParams      = 0x4
	leafExtendedTopology = 0xB
	leafExtendedMax      = 0x80000000
	leafBrandFirst       = 0x80000002
	leafBrandLast        = 0x80000004
	leafCapacity         = 0x80000008

	maxTopologyLevels = 8
)

// Info is what CPUID tells about the processor it was executed on.
type Info struct {
	Vendor     Vendor
	Brand      string
	MaxLeaf    uint32
	MaxExtLeaf uint32

	// Extended topology (leaf 0xB).
	Levels   []topology.Level
	X2APICID uint32

	// Standard feature information (leaf 1).
	HasFeatures   bool
	MaxLogical    uint8
	InitialAPICID uint8

	// Deterministic cache parameters (leaf 4, Intel).
	HasCacheParams  bool
	CoresPerPackage uint8

	// Processor capacity (leaf 0x80000008, AMD).
	HasCapacity bool
	PhysThreads uint8
	APICIDSize  uint8
}

// Probe collects Info through r.
func Probe(r Reader) Info {
	var info Info

	regs := r.CPUID(leafVendor, 0)
	info.MaxLeaf = regs.EAX
	if info.MaxLeaf > 0 || regs.EBX != 0 {
		info.Vendor = ParseVendor(registerString(regs.EBX, regs.EDX, regs.ECX))
	}

	if info.MaxLeaf >= leafFeatures {
		regs = r.CPUID(leafFeatures, 0)
		info.HasFeatures = true
		info.MaxLogical = uint8(regs.EBX >> 16)
		info.InitialAPICID = uint8(regs.EBX >> 24)
	}

	if info.MaxLeaf >= leafCacheParams {
		regs = r.CPUID(leafCacheParams, 0)
		if regs.EAX&0x1f != 0 {
			info.HasCacheParams = true
			info.CoresPerPackage = uint8(regs.EAX>>26) + 1
		}
	}

	if info.MaxLeaf >= leafExtendedTopology {
		for sub := uint32(0); sub < maxTopologyLevels; sub++ {
			regs = r.CPUID(leafExtendedTopology, sub)
			levelType := topology.LevelType(regs.ECX >> 8)
			if levelType == topology.LevelInvalid || regs.EBX&0xffff == 0 {
				break
			}
			if sub == 0 {
				info.X2APICID = regs.EDX
			}
			info.Levels = append(info.Levels, topology.Level{
				Type:  levelType,
				Shift: uint8(regs.EAX & 0x1f),
			})
		}
	}

	info.MaxExtLeaf = r.CPUID(leafExtendedMax, 0).EAX
	if info.MaxExtLeaf >= leafBrandLast {
		var b strings.Builder
		for leaf := uint32(leafBrandFirst); leaf <= leafBrandLast; leaf++ {
			regs = r.CPUID(leaf, 0)
			b.WriteString(registerString(regs.EAX, regs.EBX, regs.ECX, regs.EDX))
		}
		info.Brand = strings.TrimSpace(b.String())
	}
	if info.MaxExtLeaf >= leafCapacity {
		regs = r.CPUID(leafCapacity, 0)
		info.HasCapacity = true
		info.PhysThreads = uint8(regs.ECX&0xff) + 1
		info.APICIDSize = uint8(regs.ECX>>12) & 0xf
	}

	return info
}

// registerString concatenates registers as little-endian ASCII, dropping NULs.
func registerString(regs ...uint32) string {
	buf := make([]byte, 0, 4*len(regs))
	for _, r := range regs {
		buf = binary.LittleEndian.AppendUint32(buf, r)
	}
	return strings.TrimRight(strings.ReplaceAll(string(buf), "\x00", ""), " ")
}

// HasExtendedTopology reports whether leaf 0xB enumerated any level.
func (i Info) HasExtendedTopology() bool {
	return len(i.Levels) > 0
}

// LegacyParams derives the legacy APIC id layout from the vendor's capacity
// fields.
func (i Info) LegacyParams() (topology.LegacyParams, error) {
	switch i.Vendor.ID {
	case VendorIntel:
		if !i.HasCacheParams {
			return topology.LegacyParams{}, &topology.DecodeError{Reason: "Intel CPU: missing cache parameters"}
		}
		maxLogical := uint8(1)
		if i.HasFeatures {
			maxLogical = i.MaxLogical
		}
		return topology.LegacyParams{MaxLogical: maxLogical, CoresPerPackage: i.CoresPerPackage}, nil
	case VendorAMD:
		if !i.HasCapacity {
			return topology.LegacyParams{}, &topology.DecodeError{Reason: "AMD CPU: missing processor capacity info"}
		}
		return topology.LegacyParams{MaxLogical: i.PhysThreads, CoresPerPackage: i.APICIDSize}, nil
	}
	return topology.LegacyParams{}, &topology.DecodeError{Reason: "unsupported CPU vendor " + i.Vendor.String()}
}

// Decode locates the processor in the package/core/thread hierarchy, using
// the extended topology when available and the legacy APIC id otherwise.
func (i Info) Decode() (topology.IDs, error) {
	if i.HasExtendedTopology() {
		return topology.DecodeExtended(i.X2APICID, i.Levels)
	}
	params, err := i.LegacyParams()
	if err != nil {
		return topology.IDs{}, err
	}
	return topology.DecodeLegacy(i.InitialAPICID, params)
}
