// Package config defines runtime configuration for picoCoreTemp.
//
// Settings start from Default, are merged with an optional YAML file (named
// by --config or PICOCORETEMP_CONFIG), then with PICOCORETEMP_* environment
// variables. Command line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/CristiGvl/picoCoreTemp/internal/msr"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes all environment variables read by Load.
const EnvPrefix = "PICOCORETEMP_"

// Config holds all settings.
type Config struct {
	// Server configures the HTTP API of the serve command.
	Server ServerConfig `yaml:"server"`

	// Poll configures the temps command.
	Poll PollConfig `yaml:"poll"`

	// Driver configures the register channel.
	Driver DriverConfig `yaml:"driver"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Bind is the address to listen on.
	Bind string `yaml:"bind"`

	// Port is the HTTP port.
	Port int `yaml:"port"`
}

// PollConfig configures package temperature polling.
type PollConfig struct {
	// Count is the number of package temperature readings.
	Count int `yaml:"count"`

	// Interval is the pause between readings.
	Interval time.Duration `yaml:"interval"`
}

// DriverConfig configures the register channel.
type DriverConfig struct {
	// DeviceRoot holds the per-CPU msr device files (Linux).
	DeviceRoot string `yaml:"device_root"`

	// Modprobe loads and unloads the msr module (Linux).
	Modprobe string `yaml:"modprobe"`

	// Name is the kernel driver service name (Windows).
	Name string `yaml:"name"`

	// Path is the driver image to install (Windows).
	Path string `yaml:"path"`

	// Device is the device the driver exposes (Windows).
	Device string `yaml:"device"`
}

// Default returns the default configuration.
func Default() *Config {
	d := msr.DefaultOptions()
	return &Config{
		Server: ServerConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Poll: PollConfig{
			Count:    10,
			Interval: time.Second,
		},
		Driver: DriverConfig{
			DeviceRoot: d.DeviceRoot,
			Modprobe:   d.Modprobe,
			Name:       d.DriverName,
			Path:       d.DriverPath,
			Device:     d.DevicePath,
		},
	}
}

// Load returns the configuration from path, or from the file named by
// PICOCORETEMP_CONFIG if path is empty, with environment overrides applied.
// Without any file the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile merges the YAML file at path into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv overrides settings from PICOCORETEMP_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	str("BIND", &c.Server.Bind)
	str("DEVICE_ROOT", &c.Driver.DeviceRoot)
	str("MODPROBE", &c.Driver.Modprobe)
	str("DRIVER_NAME", &c.Driver.Name)
	str("DRIVER_PATH", &c.Driver.Path)
	str("DRIVER_DEVICE", &c.Driver.Device)

	if v, ok := lookup(EnvPrefix + "PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sPORT: %w", EnvPrefix, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup(EnvPrefix + "POLLS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sPOLLS: %w", EnvPrefix, err)
		}
		c.Poll.Count = n
	}
	if v, ok := lookup(EnvPrefix + "INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sINTERVAL: %w", EnvPrefix, err)
		}
		c.Poll.Interval = d
	}
	return nil
}

// Validate checks the settings for values no command can work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	if c.Poll.Count < 0 {
		errs = append(errs, fmt.Errorf("negative poll count %d", c.Poll.Count))
	}
	if c.Poll.Interval < 0 {
		errs = append(errs, fmt.Errorf("negative poll interval %s", c.Poll.Interval))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Address returns the host:port the HTTP API listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// MSROptions returns the register channel options.
func (c *Config) MSROptions() msr.Options {
	return msr.Options{
		DeviceRoot: c.Driver.DeviceRoot,
		Modprobe:   c.Driver.Modprobe,
		DriverName: c.Driver.Name,
		DriverPath: c.Driver.Path,
		DevicePath: c.Driver.Device,
	}
}
