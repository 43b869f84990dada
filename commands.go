package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/CristiGvl/picoCoreTemp/api"
	"github.com/CristiGvl/picoCoreTemp/internal/config"
	"github.com/CristiGvl/picoCoreTemp/internal/cpu"
	"github.com/CristiGvl/picoCoreTemp/internal/msr"
	"github.com/CristiGvl/picoCoreTemp/internal/platform"
	"github.com/CristiGvl/picoCoreTemp/internal/system"
	"github.com/CristiGvl/picoCoreTemp/internal/temps"
)

// openSystem validates the platform and builds the system.
func openSystem(cfg *config.Config) (*system.System, error) {
	if err := platform.ValidateSupport(); err != nil {
		return nil, fmt.Errorf("platform validation failed: %w", err)
	}
	host := platform.HostCPU()
	if !host.HasTelemetry() {
		log.Printf("%s processors have no supported temperature registers; readings will be unavailable", host.Vendor)
	}

	sys := system.New(msr.New(cfg.MSROptions()))
	if err := sys.Build(); err != nil {
		return nil, err
	}
	return sys, nil
}

// closeSystem closes sys, logging failures.
func closeSystem(sys *system.System) {
	if err := sys.Close(); err != nil {
		log.Printf("Error closing register driver: %v", err)
	}
}

// runTemps prints every core temperature of the first package once, then
// polls its package temperature.
func runTemps(ctx context.Context, cfg *config.Config, w io.Writer) error {
	sys, err := openSystem(cfg)
	if err != nil {
		return err
	}
	defer closeSystem(sys)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return printTemps(ctx, sys.Cpus(), cfg.Poll, w)
}

func printTemps(ctx context.Context, cpus []*cpu.Cpu, poll config.PollConfig, w io.Writer) error {
	if len(cpus) == 0 {
		return fmt.Errorf("no CPU packages found")
	}
	c := cpus[0]
	for _, core := range c.Cores {
		if t, ok := core.Temperature(); ok {
			fmt.Fprintf(w, "Core %d temp: %.0f°C\n", core.ID, t)
		} else {
			fmt.Fprintf(w, "Core %d temp: unavailable\n", core.ID)
		}
	}

	for i := 0; i < poll.Count; i++ {
		if t, err := c.PackageTemperature(); err != nil {
			fmt.Fprintf(w, "Error reading package temp: %v\n", err)
		} else {
			fmt.Fprintf(w, "Package temp: %.0f°C\n", t)
		}
		if i == poll.Count-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(poll.Interval):
		}
	}
	return nil
}

// runTopology prints the package, core and thread tree.
func runTopology(cfg *config.Config, w io.Writer) error {
	sys, err := openSystem(cfg)
	if err != nil {
		return err
	}
	defer closeSystem(sys)
	return printTopology(sys.Cpus(), w)
}

func printTopology(cpus []*cpu.Cpu, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range cpus {
		fmt.Fprintf(tw, "Package %d\t%s\t%s\tcanonical unit %s\n", c.PackageID, c.Vendor, c.Model, c.Canonical)
		for _, core := range c.Cores {
			fmt.Fprintf(tw, "  Core %d\t\t\t\n", core.ID)
			for _, t := range core.Threads {
				fmt.Fprintf(tw, "    Thread %d\tcpu %d\tunit %s\t\n", t.ID, t.Unit.CPU(), t.Unit)
			}
		}
	}
	return tw.Flush()
}

// runServe builds the system and serves it over HTTP until interrupted.
func runServe(cfg *config.Config) error {
	sys, err := openSystem(cfg)
	if err != nil {
		return err
	}
	defer closeSystem(sys)

	server := api.NewServer(sys, temps.NewReader())

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}()

	log.Printf("Starting picoCoreTemp server on %s", cfg.Address())
	return server.Start(cfg.Address())
}
