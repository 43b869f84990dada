//go:build windows

package temps

import (
	"context"
	"errors"
	"fmt"

	"github.com/StackExchange/wmi"
)

type wmiReader struct{}

func newPlatformReader() Reader {
	return wmiReader{}
}

type temperatureProbe struct {
	DeviceID        string
	Name            string
	Description     string
	CurrentReading  *uint32
	NominalReading  *uint32
	MaxReadableHigh *uint32
}

type thermalZone struct {
	Name        string
	Temperature uint64
}

// source queries one WMI class and files what it finds into info.
type source func(info *Info) error

// GetInfo walks the WMI sources in order and stops at the first that yields
// sensors. Probes are rarely implemented by firmware, so ACPI thermal zones
// are the usual answer.
func (wmiReader) GetInfo(ctx context.Context) (*Info, error) {
	var errs []error
	for _, src := range []source{probes, thermalZones} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info := newInfo()
		if err := src(info); err != nil {
			errs = append(errs, err)
			continue
		}
		if len(info.CPU)+len(info.System) > 0 {
			return info, nil
		}
	}
	if len(errs) == 2 {
		return nil, fmt.Errorf("temps: no WMI temperature source: %w", errors.Join(errs...))
	}
	return newInfo(), nil
}

func probes(info *Info) error {
	var rows []temperatureProbe
	err := wmi.Query("SELECT DeviceID, Name, Description, CurrentReading, NominalReading, MaxReadableHigh FROM Win32_TemperatureProbe", &rows)
	if err != nil {
		return fmt.Errorf("Win32_TemperatureProbe: %w", err)
	}
	for _, p := range rows {
		if p.CurrentReading == nil {
			continue
		}
		s := &Sensor{
			Name:        p.DeviceID,
			Label:       p.Name,
			Temperature: kelvinTenths(uint64(*p.CurrentReading)),
		}
		if p.Description != "" {
			s.Label = p.Description
		}
		if p.MaxReadableHigh != nil {
			s.Critical = kelvinTenths(uint64(*p.MaxReadableHigh))
		}
		if p.NominalReading != nil {
			s.Max = kelvinTenths(uint64(*p.NominalReading))
		}
		info.add(s)
	}
	return nil
}

func thermalZones(info *Info) error {
	var rows []thermalZone
	err := wmi.Query("SELECT Name, Temperature FROM Win32_PerfRawData_Counters_ThermalZoneInformation", &rows)
	if err != nil {
		return fmt.Errorf("thermal zones: %w", err)
	}
	for _, z := range rows {
		c := kelvinTenths(z.Temperature)
		if c < -50 || c > 150 {
			continue
		}
		info.add(&Sensor{Name: z.Name, Label: "Thermal Zone " + z.Name, Temperature: c})
	}
	return nil
}
