package topology

import "math/bits"

// LegacyParams are the vendor capacity fields the legacy APIC id layout is
// derived from.
type LegacyParams struct {
	// MaxLogical is the maximum number of addressable logical processor ids
	// per package.
	MaxLogical uint8
	// CoresPerPackage is the number of addressable core ids per package.
	CoresPerPackage uint8
}

// BitsNeeded returns the number of bits required to represent the values
// 0..=n, that is the smallest k with 2^k > n.
func BitsNeeded(n uint8) uint {
	return uint(bits.Len8(n))
}

// CeilPow2 rounds n up to the next power of two; CeilPow2(0) is 1.
func CeilPow2(n uint8) uint {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len8(n-1)
}

// Widths returns the SMT and core field widths of a legacy APIC id.
func (p LegacyParams) Widths() (smt, core uint, err error) {
	if p.CoresPerPackage == 0 {
		return 0, 0, decodeErrorf("zero cores per package")
	}
	ratio := CeilPow2(p.MaxLogical) / uint(p.CoresPerPackage)
	if ratio == 0 {
		return 0, 0, decodeErrorf("%d cores per package exceed %d logical processors",
			p.CoresPerPackage, p.MaxLogical)
	}
	smt = BitsNeeded(uint8(ratio - 1))
	core = BitsNeeded(p.CoresPerPackage - 1)
	if smt+core > 8 {
		return 0, 0, decodeErrorf("legacy APIC fields need %d bits", smt+core)
	}
	return smt, core, nil
}

// DecodeLegacy decodes an 8-bit initial APIC id.
func DecodeLegacy(apicID uint8, p LegacyParams) (IDs, error) {
	smt, core, err := p.Widths()
	if err != nil {
		return IDs{}, err
	}
	return split(uint32(apicID), smt, smt+core), nil
}

// EncodeLegacy builds the initial APIC id for ids under p.
func EncodeLegacy(ids IDs, p LegacyParams) (uint8, error) {
	smt, core, err := p.Widths()
	if err != nil {
		return 0, err
	}
	id, err := join(ids, smt, smt+core, 8)
	return uint8(id), err
}
