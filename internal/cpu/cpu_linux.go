//go:build linux

package cpu

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

// HostModel returns the processor model name the OS reports, or an empty
// string if it cannot tell.
func HostModel() string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cpuInfo, err := cpu.InfoWithContext(ctx)
	if err != nil || len(cpuInfo) == 0 {
		return ""
	}
	return cpuInfo[0].ModelName
}
