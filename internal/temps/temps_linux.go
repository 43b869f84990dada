//go:build linux

package temps

import (
	"context"

	"github.com/shirou/gopsutil/v3/host"
)

// LinuxReader reads the hwmon sensors gopsutil discovers.
type LinuxReader struct{}

// newPlatformReader creates a new Linux temperature reader
func newPlatformReader() Reader {
	return &LinuxReader{}
}

// GetInfo returns the sensors, tolerating partial hwmon read errors.
func (r *LinuxReader) GetInfo(ctx context.Context) (*Info, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return nil, err
	}

	info := newInfo()
	for _, temp := range temps {
		info.add(&Sensor{
			Name:        temp.SensorKey,
			Label:       temp.SensorKey,
			Temperature: temp.Temperature,
			Critical:    temp.Critical,
			Max:         temp.High,
		})
	}
	return info, nil
}
