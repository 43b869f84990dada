// Package system owns the register channel and the CPU tree gathered through
// it. A System goes through the states Unbuilt, DriverInstalled, DriverOpen
// and Gathered once, and ends Closed.
package system

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/CristiGvl/picoCoreTemp/internal/affinity"
	"github.com/CristiGvl/picoCoreTemp/internal/backend"
	"github.com/CristiGvl/picoCoreTemp/internal/cpu"
	"github.com/CristiGvl/picoCoreTemp/internal/msr"
	"github.com/CristiGvl/picoCoreTemp/internal/probe"
)

// State is the lifecycle state of a System.
type State uint8

const (
	Unbuilt State = iota
	DriverInstalled
	DriverOpen
	Gathered
	Closed
)

func (s State) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case DriverInstalled:
		return "driver installed"
	case DriverOpen:
		return "driver open"
	case Gathered:
		return "gathered"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

var (
	// ErrClosed is returned when using a System that has been closed.
	ErrClosed = errors.New("system: closed")
	// ErrNotGathered is returned by accessors before Build succeeded.
	ErrNotGathered = errors.New("system: not gathered")
	// ErrNoPackage is returned for package ids not in the tree.
	ErrNoPackage = errors.New("system: no such package")
)

// System gathers the CPU tree of this machine and reads its telemetry.
type System struct {
	ch        msr.Channel
	enumerate func() ([]affinity.Unit, error)
	sched     affinity.Scheduler
	detect    cpu.Detector
	model     func() string
	factory   backend.Factory
	log       *log.Logger
	withCPU   bool

	mu    sync.RWMutex
	state State
	cpus  []*cpu.Cpu
}

// Option configures a System.
type Option func(*System)

// WithEnumerator replaces the OS processor enumeration.
func WithEnumerator(fn func() ([]affinity.Unit, error)) Option {
	return func(s *System) { s.enumerate = fn }
}

// WithScheduler replaces the OS thread scheduler used while probing.
func WithScheduler(sched affinity.Scheduler) Option {
	return func(s *System) { s.sched = sched }
}

// WithDetector replaces the CPUID based unit detection.
func WithDetector(detect cpu.Detector) Option {
	return func(s *System) { s.detect = detect }
}

// WithFallbackModel sets how to name processors without a CPUID brand
// string.
func WithFallbackModel(fn func() string) Option {
	return func(s *System) { s.model = fn }
}

// WithBackendFactory replaces the vendor backend construction.
func WithBackendFactory(f backend.Factory) Option {
	return func(s *System) { s.factory = f }
}

// WithoutCPU only sets up the register channel; no CPU tree is gathered.
func WithoutCPU() Option {
	return func(s *System) { s.withCPU = false }
}

// WithLogger sets the logger for lifecycle events. A nil logger silences
// them.
func WithLogger(l *log.Logger) Option {
	return func(s *System) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		s.log = l
	}
}

// New returns an unbuilt System reading registers through ch.
func New(ch msr.Channel, opts ...Option) *System {
	s := &System{
		ch:        ch,
		enumerate: affinity.Enumerate,
		sched:     affinity.OS{},
		detect:    cpu.NativeDetector,
		model:     cpu.HostModel,
		factory:   backend.NewFactory(ch),
		log:       log.Default(),
		withCPU:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *System) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Build installs and opens the register channel, then gathers the CPU tree.
// If gathering fails the channel is torn down again and the System is
// closed.
func (s *System) Build() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case Unbuilt:
	case Closed:
		return ErrClosed
	default:
		return fmt.Errorf("system: already built (%s)", s.state)
	}

	if err := s.ch.Install(); err != nil {
		return fmt.Errorf("system: installing driver: %w", err)
	}
	s.state = DriverInstalled
	s.log.Printf("register driver installed")

	if err := s.ch.Open(); err != nil {
		err = fmt.Errorf("system: opening driver: %w", err)
		if uerr := s.ch.Uninstall(); uerr != nil {
			err = errors.Join(err, fmt.Errorf("system: uninstalling driver: %w", uerr))
		}
		s.state = Unbuilt
		return err
	}
	s.state = DriverOpen
	s.log.Printf("register driver opened")

	if !s.withCPU {
		s.state = Gathered
		return nil
	}

	cpus, err := s.gather()
	if err != nil {
		err = fmt.Errorf("system: gathering topology: %w", err)
		s.state = Closed
		return errors.Join(err, s.teardown())
	}
	s.cpus = cpus
	s.state = Gathered
	for _, c := range cpus {
		s.log.Printf("package %d: %s %q, %d cores, %d threads, canonical unit %s",
			c.PackageID, c.Vendor, c.Model, len(c.Cores), c.Threads(), c.Canonical)
		if intel, ok := c.Backend.(*backend.Intel); ok {
			if tj, calibrated := intel.TjMax(); !calibrated {
				s.log.Printf("package %d: TjMax unreadable, assuming %.0f°C", c.PackageID, tj)
			}
		}
	}
	return nil
}

// gather probes every unit in parallel and folds the results into the tree.
// Any unit failing fails the whole gather.
func (s *System) gather() ([]*cpu.Cpu, error) {
	units, err := s.enumerate()
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, errors.New("no processors available")
	}
	results, err := probe.Run(s.sched, units, s.detect)
	if err != nil {
		return nil, err
	}
	var errs []error
	detected := make([]cpu.DetectedUnit, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		detected = append(detected, r.Value)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cpu.Aggregate(detected, s.factory, s.model)
}

func (s *System) teardown() error {
	var errs []error
	if err := s.ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("system: closing driver: %w", err))
	}
	if err := s.ch.Uninstall(); err != nil {
		errs = append(errs, fmt.Errorf("system: uninstalling driver: %w", err))
	}
	s.cpus = nil
	return errors.Join(errs...)
}

// Close closes and uninstalls the register channel. Closing a System that
// is already closed returns ErrClosed.
func (s *System) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	switch prev {
	case Closed:
		return ErrClosed
	case Unbuilt:
		s.state = Closed
		return nil
	}
	s.state = Closed
	if prev == DriverInstalled {
		if err := s.ch.Uninstall(); err != nil {
			return fmt.Errorf("system: uninstalling driver: %w", err)
		}
		return nil
	}
	err := s.teardown()
	s.log.Printf("register driver closed")
	return err
}

// Cpus returns the gathered CPU packages, ordered by their lowest unit.
func (s *System) Cpus() []*cpu.Cpu {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cpus
}

// Cpu returns the package with id pkg.
func (s *System) Cpu(pkg uint32) (*cpu.Cpu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case Gathered:
	case Closed:
		return nil, ErrClosed
	default:
		return nil, ErrNotGathered
	}
	for _, c := range s.cpus {
		if c.PackageID == pkg {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrNoPackage, pkg)
}

// PackageTemperature reads the temperature of package pkg.
func (s *System) PackageTemperature(pkg uint32) (float64, error) {
	c, err := s.Cpu(pkg)
	if err != nil {
		return 0, err
	}
	return c.PackageTemperature()
}

// CoreTemperature is one core's temperature; Available is false when the
// core has no readable sensor.
type CoreTemperature struct {
	CoreID    uint32  `json:"core_id"`
	Celsius   float64 `json:"celsius"`
	Available bool    `json:"available"`
}

// CoreTemperatures reads the temperature of every core of package pkg.
func (s *System) CoreTemperatures(pkg uint32) ([]CoreTemperature, error) {
	c, err := s.Cpu(pkg)
	if err != nil {
		return nil, err
	}
	temps := make([]CoreTemperature, 0, len(c.Cores))
	for _, core := range c.Cores {
		t, ok := core.Temperature()
		temps = append(temps, CoreTemperature{CoreID: core.ID, Celsius: t, Available: ok})
	}
	return temps, nil
}
