package cpu

import (
	"errors"
	"fmt"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/backend"
	"github.com/CristiGvl/picoCoreTemp/internal/cpuid"

	. "github.com/onsi/ginkgo/v2/dsl/core"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

// stubBackend answers every capability with a fixed reading.
type stubBackend struct {
	vendor  cpuid.Vendor
	scope   backend.Scope
	unit    affinity.Unit
	value   float64
	missing bool
	err     error
}

func (b *stubBackend) Vendor() cpuid.Vendor { return b.vendor }
func (b *stubBackend) Scope() backend.Scope { return b.scope }
func (b *stubBackend) Unit() affinity.Unit { return b.unit }
func (b *stubBackend) Supports(backend.Capability) bool { return !b.missing }

func (b *stubBackend) Read(c backend.Capability) (backend.Reading, error) {
	if b.err != nil {
		return backend.Reading{}, b.err
	}
	if b.missing {
		return backend.Reading{Capability: c}, nil
	}
	return backend.Reading{Capability: c, Value: b.value, Available: true}, nil
}

// recordingFactory counts the backends it creates per scope.
type recordingFactory struct {
	created map[backend.Scope][]affinity.Unit
}

func newRecordingFactory() *recordingFactory {
	return &recordingFactory{created: map[backend.Scope][]affinity.Unit{}}
}

func (f *recordingFactory) factory(vendor cpuid.Vendor, scope backend.Scope, unit affinity.Unit) backend.Backend {
	f.created[scope] = append(f.created[scope], unit)
	return &stubBackend{vendor: vendor, scope: scope, unit: unit, value: float64(unit.CPU())}
}

// grid returns the detected units of pkgs packages with cores cores of
// threads threads each, numbered consecutively.
func grid(pkgs, cores, threads int) []DetectedUnit {
	var units []DetectedUnit
	n := 0
	for p := 0; p < pkgs; p++ {
		for c := 0; c < cores; c++ {
			for t := 0; t < threads; t++ {
				units = append(units, DetectedUnit{
					Unit:      affinity.UnitOf(n),
					PackageID: uint32(p),
					CoreID:    uint32(c),
					ThreadID:  uint32(t),
					Vendor:    cpuid.Intel,
					Model:     fmt.Sprintf("model %d", p),
				})
				n++
			}
		}
	}
	return units
}

// permutations calls fn with every ordering of units (Heap's algorithm).
func permutations(units []DetectedUnit, fn func([]DetectedUnit)) {
	a := append([]DetectedUnit(nil), units...)
	c := make([]int, len(a))
	fn(a)
	for i := 0; i < len(a); {
		if c[i] < i {
			if i%2 == 0 {
				a[0], a[i] = a[i], a[0]
			} else {
				a[c[i]], a[i] = a[i], a[c[i]]
			}
			fn(a)
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
}

type shape map[uint32]map[uint32]map[uint32]affinity.Unit

func shapeOf(cpus []*Cpu) shape {
	s := shape{}
	for _, c := range cpus {
		s[c.PackageID] = map[uint32]map[uint32]affinity.Unit{}
		for _, core := range c.Cores {
			s[c.PackageID][core.ID] = map[uint32]affinity.Unit{}
			for _, t := range core.Threads {
				s[c.PackageID][core.ID][t.ID] = t.Unit
			}
		}
	}
	return s
}

var _ = Describe("aggregating detected units", func() {

	It("groups a 2x2x2 machine into packages, cores and threads", func() {
		f := newRecordingFactory()
		cpus := Successful(Aggregate(grid(2, 2, 2), f.factory, nil))
		Expect(cpus).To(HaveLen(2))
		for i, c := range cpus {
			Expect(c.PackageID).To(Equal(uint32(i)))
			Expect(c.Vendor).To(Equal(cpuid.Intel))
			Expect(c.Model).To(Equal(fmt.Sprintf("model %d", i)))
			Expect(c.Canonical).To(Equal(affinity.UnitOf(4 * i)))
			Expect(c.Backend.Unit()).To(Equal(c.Canonical))
			Expect(c.Backend.Scope()).To(Equal(backend.ScopePackage))
			Expect(c.Cores).To(HaveLen(2))
			Expect(c.Threads()).To(Equal(4))
			for j, core := range c.Cores {
				Expect(core.ID).To(Equal(uint32(j)))
				Expect(core.Threads).To(HaveLen(2))
				Expect(core.Backend.Scope()).To(Equal(backend.ScopeCore))
				Expect(core.Backend.Unit()).To(Equal(core.Threads[0].Unit))
			}
		}
		Expect(f.created[backend.ScopePackage]).To(HaveLen(2))
		Expect(f.created[backend.ScopeCore]).To(HaveLen(4))
	})

	It("yields the same tree and canonical units for every fold order", func() {
		units := grid(2, 2, 2)
		expected := shapeOf(Successful(Aggregate(units, newRecordingFactory().factory, nil)))
		count := 0
		permutations(units, func(order []DetectedUnit) {
			count++
			a := NewAggregator(newRecordingFactory().factory)
			for _, d := range order {
				Expect(a.Fold(d)).To(Succeed())
			}
			Expect(shapeOf(a.Cpus())).To(Equal(expected))
			for i, c := range a.Cpus() {
				Expect(c.PackageID).To(Equal(uint32(i)))
				Expect(c.Canonical).To(Equal(affinity.UnitOf(4 * int(c.PackageID))))
				Expect(c.Backend.Unit()).To(Equal(c.Canonical))
				for j, core := range c.Cores {
					Expect(core.ID).To(Equal(uint32(j)))
					Expect(core.Backend.Unit()).To(Equal(core.Threads[0].Unit))
					Expect(core.Threads[0].ID).To(Equal(uint32(0)))
				}
			}

			sorted := Successful(Aggregate(order, newRecordingFactory().factory, nil))
			for i, c := range sorted {
				Expect(c.PackageID).To(Equal(uint32(i)))
				Expect(c.Backend.Unit()).To(Equal(c.Canonical))
			}
		})
		Expect(count).To(Equal(40320))
	})

	It("rebinds backends to lower units folded in later", func() {
		units := grid(1, 2, 2)
		f := newRecordingFactory()
		a := NewAggregator(f.factory)
		for i := len(units) - 1; i >= 0; i-- {
			Expect(a.Fold(units[i])).To(Succeed())
		}
		cpus := a.Cpus()
		Expect(cpus).To(HaveLen(1))
		c := cpus[0]
		Expect(c.Canonical).To(Equal(affinity.UnitOf(0)))
		Expect(c.Backend.Unit()).To(Equal(affinity.UnitOf(0)))
		Expect(c.Backend.Scope()).To(Equal(backend.ScopePackage))
		Expect(c.Cores).To(HaveLen(2))
		Expect(c.Cores[0].ID).To(Equal(uint32(0)))
		Expect(c.Cores[0].Backend.Unit()).To(Equal(affinity.UnitOf(0)))
		Expect(c.Cores[1].Backend.Unit()).To(Equal(affinity.UnitOf(2)))
		Expect(c.Cores[1].Threads[0].Unit).To(Equal(affinity.UnitOf(2)))
		Expect(f.created[backend.ScopePackage]).To(Equal([]affinity.Unit{
			affinity.UnitOf(3), affinity.UnitOf(2), affinity.UnitOf(1), affinity.UnitOf(0),
		}))

		temp := Successful(c.PackageTemperature())
		Expect(temp).To(Equal(0.0))
	})

	It("rejects units claiming the same thread", func() {
		units := grid(1, 1, 2)
		units[1].ThreadID = 0
		_, err := Aggregate(units, newRecordingFactory().factory, nil)
		var dup *DuplicateThreadError
		Expect(errors.As(err, &dup)).To(BeTrue())
		Expect(dup.Existing).To(Equal(affinity.UnitOf(0)))
		Expect(dup.Duplicate).To(Equal(affinity.UnitOf(1)))
		Expect(dup.Error()).To(ContainSubstring("package 0 core 0 thread 0"))
	})

	It("asks for the fallback model once, only when CPUID had no brand", func() {
		units := grid(2, 1, 1)
		for i := range units {
			units[i].Model = ""
		}
		calls := 0
		cpus := Successful(Aggregate(units, newRecordingFactory().factory, func() string {
			calls++
			return "host model"
		}))
		Expect(calls).To(Equal(1))
		Expect(cpus[0].Model).To(Equal("host model"))
		Expect(cpus[1].Model).To(Equal("host model"))

		calls = 0
		Successful(Aggregate(grid(1, 1, 1), newRecordingFactory().factory, func() string {
			calls++
			return ""
		}))
		Expect(calls).To(BeZero())
	})

	It("handles no units", func() {
		Expect(Aggregate(nil, newRecordingFactory().factory, nil)).To(BeEmpty())
	})

})

var _ = Describe("reading temperatures", func() {

	It("reads package and core temperatures from their backends", func() {
		c := &Cpu{Backend: &stubBackend{value: 61}}
		Expect(c.PackageTemperature()).To(Equal(61.0))

		core := &Core{Backend: &stubBackend{value: 55}}
		Expect(core.ReadTemperature()).To(Equal(55.0))
		t, ok := core.Temperature()
		Expect(ok).To(BeTrue())
		Expect(t).To(Equal(55.0))
	})

	It("reports unavailable core temperatures without failing", func() {
		core := &Core{Backend: &stubBackend{missing: true}}
		_, ok := core.Temperature()
		Expect(ok).To(BeFalse())
		_, err := core.ReadTemperature()
		Expect(err).To(MatchError(backend.ErrUnsupported))

		core = &Core{Backend: &stubBackend{err: backend.ErrUnknownValue}}
		_, ok = core.Temperature()
		Expect(ok).To(BeFalse())
	})

	It("surfaces package read failures", func() {
		c := &Cpu{Backend: &stubBackend{err: backend.ErrUnknownValue}}
		_, err := c.PackageTemperature()
		Expect(err).To(MatchError(backend.ErrUnknownValue))

		c = &Cpu{Backend: &stubBackend{missing: true}}
		_, err = c.PackageTemperature()
		Expect(err).To(MatchError(backend.ErrUnsupported))
	})

})
