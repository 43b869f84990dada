package backend

import (
	"errors"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/cpuid"
	"github.com/CristiGvl/picoCoreTemp/internal/msr"
	"github.com/CristiGvl/picoCoreTemp/internal/msr/msrfake"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/ginkgo/v2/dsl/table"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// thermStatus builds a valid thermal status register with the given delta.
func thermStatus(delta uint32) uint64 {
	return uint64(1<<31 | delta<<16 | 0x0800)
}

// tjMaxRegister builds IA32_TEMPERATURE_TARGET for tjMax.
func tjMaxRegister(tjMax uint32) uint64 {
	return uint64(tjMax << 16)
}

var _ = Describe("vendor backends", func() {

	unit := affinity.UnitOf(3)

	var ch *msrfake.Channel

	BeforeEach(func() {
		ch = msrfake.New()
		Expect(ch.Open()).To(Succeed())
	})

	DescribeTable("Intel temperature formula",
		func(eax uint32, tjMax float64, expected float64) {
			Expect(Successful(Temperature(eax, tjMax))).To(Equal(expected))
		},
		Entry("delta 5 below 100", uint32(1<<31|5<<16), 100.0, 95.0),
		Entry("delta 0", uint32(1<<31), 100.0, 100.0),
		Entry("max delta", uint32(1<<31|0x7f<<16), 105.0, 105.0-127),
		Entry("bit 23 is not part of the delta", uint32(1<<31|0x85<<16), 100.0, 95.0),
	)

	It("refuses thermal status without the validity bit", func() {
		for _, eax := range []uint32{0, 5 << 16, 0x7fff_ffff} {
			_, err := Temperature(eax, 100)
			Expect(err).To(MatchError(ErrUnknownValue))
		}
	})

	It("calibrates Intel backends from the temperature target of their unit", func() {
		ch.Set(msr.IA32TemperatureTarget, unit, tjMaxRegister(90))
		ch.Set(msr.IA32ThermStatus, unit, thermStatus(20))

		b := NewIntel(ch, ScopeCore, unit)
		tj, calibrated := b.TjMax()
		Expect(tj).To(Equal(90.0))
		Expect(calibrated).To(BeTrue())

		r := Successful(b.Read(CoreTemperature))
		Expect(r.Available).To(BeTrue())
		Expect(r.Value).To(Equal(70.0))
		Expect(ch.Reads()).To(ConsistOf(
			msrfake.Key{Addr: msr.IA32TemperatureTarget, Unit: unit},
			msrfake.Key{Addr: msr.IA32ThermStatus, Unit: unit},
		))
	})

	It("falls back to the default TjMax when calibration fails", func() {
		ch.SetError(msr.IA32TemperatureTarget, unit, errors.New("EIO"))
		ch.Set(msr.IA32PackageThermStatus, unit, thermStatus(5))

		b := New(ch, cpuid.Intel, ScopePackage, unit).(*Intel)
		tj, calibrated := b.TjMax()
		Expect(tj).To(Equal(DefaultTjMax))
		Expect(calibrated).To(BeFalse())
		Expect(Successful(b.Read(PackageTemperature)).Value).To(Equal(95.0))
	})

	It("treats a zero temperature target as uncalibrated", func() {
		ch.Set(msr.IA32TemperatureTarget, unit, tjMaxRegister(0)|0xff)
		ch.Set(msr.IA32PackageThermStatus, unit, thermStatus(30))

		_, err := ReadTjMax(ch, unit)
		Expect(err).To(MatchError(ErrNoTjMax))

		b := NewIntel(ch, ScopePackage, unit)
		tj, calibrated := b.TjMax()
		Expect(tj).To(Equal(DefaultTjMax))
		Expect(calibrated).To(BeFalse())
		Expect(Successful(b.Read(PackageTemperature)).Value).To(Equal(70.0))
	})

	It("reports register failures and invalid readings as errors", func() {
		b := NewIntel(ch, ScopePackage, unit)
		_, err := b.Read(PackageTemperature)
		var rerr *msr.ReadError
		Expect(err).To(BeAssignableToTypeOf(rerr))

		ch.Set(msr.IA32PackageThermStatus, unit, 5<<16)
		_, err = b.Read(PackageTemperature)
		Expect(err).To(MatchError(ErrUnknownValue))
	})

	It("answers only the capability of its scope on Intel", func() {
		pkg := NewIntel(ch, ScopePackage, unit)
		core := NewIntel(ch, ScopeCore, unit)
		Expect(pkg.Supports(PackageTemperature)).To(BeTrue())
		Expect(pkg.Supports(CoreTemperature)).To(BeFalse())
		Expect(core.Supports(CoreTemperature)).To(BeTrue())
		for _, c := range []Capability{ThreadLoad, Power, Voltage} {
			Expect(pkg.Supports(c)).To(BeFalse())
			r := Successful(pkg.Read(c))
			Expect(r.Available).To(BeFalse())
			Expect(r.Err()).To(MatchError(ErrUnsupported))
		}
	})

	DescribeTable("vendors without telemetry",
		func(vendor cpuid.Vendor) {
			b := New(ch, vendor, ScopePackage, unit)
			Expect(b.Vendor()).To(Equal(vendor))
			Expect(b.Unit()).To(Equal(unit))
			for _, c := range Capabilities {
				Expect(b.Supports(c)).To(BeFalse())
				r := Successful(b.Read(c))
				Expect(r.Available).To(BeFalse())
				Expect(r.Capability).To(Equal(c))
			}
			Expect(ch.Reads()).To(BeEmpty())
		},
		Entry("AMD", cpuid.AMD),
		Entry("unknown", cpuid.Vendor{Name: "CentaurHauls"}),
		Entry("unnamed", cpuid.Vendor{}),
	)

	It("names capabilities and scopes", func() {
		Expect(PackageTemperature.String()).To(Equal("package temperature"))
		Expect(Capability(42).String()).To(Equal("capability(42)"))
		Expect(ScopeCore.String()).To(Equal("core"))
	})

})
