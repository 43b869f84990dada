// Package temps lists the temperature sensors the operating system itself
// reports, as a reference next to the register based readings.
package temps

import (
	"context"
	"strings"
)

// Sensor represents a temperature sensor
type Sensor struct {
	Name        string  `json:"name"`
	Label       string  `json:"label"`
	Temperature float64 `json:"temperature_celsius"`
	Critical    float64 `json:"critical_celsius,omitempty"`
	Max         float64 `json:"max_celsius,omitempty"`
}

// Info represents temperature information
type Info struct {
	CPU    []*Sensor `json:"cpu"`
	System []*Sensor `json:"system"`
}

// Reader interface for temperature monitoring
type Reader interface {
	GetInfo(ctx context.Context) (*Info, error)
}

// NewReader creates a new temperature reader for the current platform
func NewReader() Reader {
	return newPlatformReader()
}

var cpuSensorNames = []string{"cpu", "core", "package", "processor", "coretemp", "k10temp", "x86_pkg_temp"}

// add sorts the sensor into CPU or system sensors by its name
func (i *Info) add(s *Sensor) {
	name := strings.ToLower(s.Name + " " + s.Label)
	for _, n := range cpuSensorNames {
		if strings.Contains(name, n) {
			i.CPU = append(i.CPU, s)
			return
		}
	}
	i.System = append(i.System, s)
}

func newInfo() *Info {
	return &Info{CPU: []*Sensor{}, System: []*Sensor{}}
}

// kelvinTenths converts tenths of Kelvin to degrees Celsius
func kelvinTenths(v uint64) float64 {
	return float64(v)/10.0 - 273.15
}
