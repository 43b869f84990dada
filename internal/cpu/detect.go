package cpu

import (
	"fmt"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/cpuid"
)

// Detector identifies the logical processor unit. It is called on a thread
// pinned to unit.
type Detector func(unit affinity.Unit) (DetectedUnit, error)

// Detect identifies unit from the CPUID answers of r.
func Detect(r cpuid.Reader, unit affinity.Unit) (DetectedUnit, error) {
	info := cpuid.Probe(r)
	ids, err := info.Decode()
	if err != nil {
		return DetectedUnit{}, fmt.Errorf("cpu: decoding topology of unit %s: %w", unit, err)
	}
	return DetectedUnit{
		Unit:      unit,
		PackageID: ids.Package,
		CoreID:    ids.Core,
		ThreadID:  ids.Thread,
		Vendor:    info.Vendor,
		Model:     info.Brand,
	}, nil
}

// NativeDetector detects units with the CPUID instruction of the processor
// the calling thread runs on.
func NativeDetector(unit affinity.Unit) (DetectedUnit, error) {
	return Detect(cpuid.Native{}, unit)
}
