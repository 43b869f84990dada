//go:build windows

package cpu

import (
	"context"
	"strings"
	"time"

	"github.com/StackExchange/wmi"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Win32_Processor holds the WMI processor fields we use
type Win32_Processor struct {
	Name string
}

// HostModel returns the processor model name the OS reports, or an empty
// string if it cannot tell. WMI is asked first, gopsutil second.
func HostModel() string {
	var procs []Win32_Processor
	if err := wmi.Query("SELECT Name FROM Win32_Processor", &procs); err == nil && len(procs) > 0 {
		if name := strings.TrimSpace(procs[0].Name); name != "" {
			return name
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cpuInfo, err := cpu.InfoWithContext(ctx)
	if err != nil || len(cpuInfo) == 0 {
		return ""
	}
	return cpuInfo[0].ModelName
}
