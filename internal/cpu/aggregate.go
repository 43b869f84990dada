package cpu

import (
	"fmt"
	"slices"
	"sync"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/backend"
)

// DuplicateThreadError reports two units claiming the same package, core and
// thread ids.
type DuplicateThreadError struct {
	PackageID, CoreID, ThreadID uint32
	Existing, Duplicate         affinity.Unit
}

func (e *DuplicateThreadError) Error() string {
	return fmt.Sprintf("cpu: units %s and %s both decode to package %d core %d thread %d",
		e.Existing, e.Duplicate, e.PackageID, e.CoreID, e.ThreadID)
}

type coreKey struct {
	pkg, core uint32
}

type threadKey struct {
	pkg, core, thread uint32
}

// Aggregator folds detected units into Cpu records. Backends are created
// through Factory: one package backend per Cpu and one core backend per Core,
// each bound to the lowest unit seen for it so far.
type Aggregator struct {
	Factory backend.Factory
	// FallbackModel names the processor when CPUID reported no brand
	// string. It is consulted at most once.
	FallbackModel func() string

	cpus    []*Cpu
	byPkg   map[uint32]*Cpu
	byCore  map[coreKey]*Core
	threads map[threadKey]affinity.Unit

	fallback     sync.Once
	fallbackName string
}

// NewAggregator returns an empty aggregator creating backends with factory.
func NewAggregator(factory backend.Factory) *Aggregator {
	return &Aggregator{
		Factory: factory,
		byPkg:   map[uint32]*Cpu{},
		byCore:  map[coreKey]*Core{},
		threads: map[threadKey]affinity.Unit{},
	}
}

func (a *Aggregator) model(d DetectedUnit) string {
	if d.Model != "" || a.FallbackModel == nil {
		return d.Model
	}
	a.fallback.Do(func() { a.fallbackName = a.FallbackModel() })
	return a.fallbackName
}

// Fold adds one detected unit. Whatever the order of calls, a Cpu's
// canonical unit is the minimum unit folded into it, its package backend is
// bound to that unit, and each core backend is bound to the core's minimum
// unit. Cores and threads are kept in unit order.
func (a *Aggregator) Fold(d DetectedUnit) error {
	tk := threadKey{d.PackageID, d.CoreID, d.ThreadID}
	if existing, ok := a.threads[tk]; ok {
		return &DuplicateThreadError{
			PackageID: d.PackageID, CoreID: d.CoreID, ThreadID: d.ThreadID,
			Existing: existing, Duplicate: d.Unit,
		}
	}

	c, ok := a.byPkg[d.PackageID]
	switch {
	case !ok:
		c = &Cpu{
			PackageID: d.PackageID,
			Vendor:    d.Vendor,
			Model:     a.model(d),
			Canonical: d.Unit,
			Backend:   a.Factory(d.Vendor, backend.ScopePackage, d.Unit),
		}
		a.byPkg[d.PackageID] = c
		a.cpus = append(a.cpus, c)
	case d.Unit.Less(c.Canonical):
		c.Canonical = d.Unit
		c.Backend = a.Factory(c.Vendor, backend.ScopePackage, d.Unit)
	}

	ck := coreKey{d.PackageID, d.CoreID}
	core, ok := a.byCore[ck]
	switch {
	case !ok:
		core = &Core{
			ID:      d.CoreID,
			Backend: a.Factory(c.Vendor, backend.ScopeCore, d.Unit),
		}
		a.byCore[ck] = core
		c.Cores = append(c.Cores, core)
	case d.Unit.Less(core.Threads[0].Unit):
		core.Backend = a.Factory(c.Vendor, backend.ScopeCore, d.Unit)
	}

	t := &Thread{ID: d.ThreadID, Unit: d.Unit}
	at, _ := slices.BinarySearchFunc(core.Threads, d.Unit, func(t *Thread, u affinity.Unit) int {
		return t.Unit.Compare(u)
	})
	core.Threads = slices.Insert(core.Threads, at, t)
	slices.SortStableFunc(c.Cores, func(x, y *Core) int {
		return x.Threads[0].Unit.Compare(y.Threads[0].Unit)
	})
	a.threads[tk] = d.Unit
	return nil
}

// Cpus returns the Cpu records ordered by canonical unit.
func (a *Aggregator) Cpus() []*Cpu {
	slices.SortStableFunc(a.cpus, func(x, y *Cpu) int {
		return x.Canonical.Compare(y.Canonical)
	})
	return a.cpus
}

// Aggregate folds units in unit order, so the same set of units always
// yields the same tree.
func Aggregate(units []DetectedUnit, factory backend.Factory, fallbackModel func() string) ([]*Cpu, error) {
	sorted := slices.Clone(units)
	slices.SortFunc(sorted, func(a, b DetectedUnit) int { return a.Unit.Compare(b.Unit) })

	a := NewAggregator(factory)
	a.FallbackModel = fallbackModel
	for _, d := range sorted {
		if err := a.Fold(d); err != nil {
			return nil, err
		}
	}
	return a.Cpus(), nil
}
