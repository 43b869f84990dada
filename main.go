// picoCoreTemp reads CPU package and core temperatures from the processors'
// thermal registers.
//
// Usage:
//
//	picocoretemp temps
//	picocoretemp topology
//	picocoretemp serve --port 8080
package main

import (
	"log"
	"os"

	"github.com/CristiGvl/picoCoreTemp/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	var configPath string
	cfg := config.Default()

	root := &cobra.Command{
		Use:           "picocoretemp",
		Short:         "Read CPU temperatures from thermal registers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd.Flags(), loaded, cfg)
			*cfg = *loaded
			return cfg.Validate()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"YAML config file (default $"+config.EnvPrefix+"CONFIG)")
	driverFlags(root.PersistentFlags(), cfg)

	temps := &cobra.Command{
		Use:   "temps",
		Short: "Print core temperatures, then poll the package temperature",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemps(cmd.Context(), cfg, os.Stdout)
		},
	}
	tf := temps.Flags()
	tf.IntVarP(&cfg.Poll.Count, "polls", "n", cfg.Poll.Count, "Number of package temperature readings")
	tf.DurationVarP(&cfg.Poll.Interval, "interval", "i", cfg.Poll.Interval, "Pause between readings")

	topology := &cobra.Command{
		Use:   "topology",
		Short: "Print the package, core and thread tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTopology(cfg, os.Stdout)
		},
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfg)
		},
	}
	sf := serve.Flags()
	sf.IntVarP(&cfg.Server.Port, "port", "p", cfg.Server.Port, "HTTP port")
	sf.StringVar(&cfg.Server.Bind, "bind", cfg.Server.Bind, "IP address to bind the server to")

	root.AddCommand(temps, topology, serve)
	if err := root.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

// driverFlags registers the register channel settings.
func driverFlags(f *pflag.FlagSet, cfg *config.Config) {
	f.StringVar(&cfg.Driver.DeviceRoot, "device-root", cfg.Driver.DeviceRoot, "Directory of the per-CPU msr devices (Linux)")
	f.StringVar(&cfg.Driver.Modprobe, "modprobe", cfg.Driver.Modprobe, "Command loading the msr module (Linux)")
	f.StringVar(&cfg.Driver.Name, "driver-name", cfg.Driver.Name, "Kernel driver service name (Windows)")
	f.StringVar(&cfg.Driver.Path, "driver-path", cfg.Driver.Path, "Kernel driver image to install (Windows)")
	f.StringVar(&cfg.Driver.Device, "driver-device", cfg.Driver.Device, "Device exposed by the kernel driver (Windows)")
}

// applyFlags copies every flag set on the command line from flagged into
// loaded, so that flags win over the config file and the environment.
func applyFlags(f *pflag.FlagSet, loaded, flagged *config.Config) {
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("polls", func() { loaded.Poll.Count = flagged.Poll.Count })
	set("interval", func() { loaded.Poll.Interval = flagged.Poll.Interval })
	set("port", func() { loaded.Server.Port = flagged.Server.Port })
	set("bind", func() { loaded.Server.Bind = flagged.Server.Bind })
	set("device-root", func() { loaded.Driver.DeviceRoot = flagged.Driver.DeviceRoot })
	set("modprobe", func() { loaded.Driver.Modprobe = flagged.Driver.Modprobe })
	set("driver-name", func() { loaded.Driver.Name = flagged.Driver.Name })
	set("driver-path", func() { loaded.Driver.Path = flagged.Driver.Path })
	set("driver-device", func() { loaded.Driver.Device = flagged.Driver.Device })
}
