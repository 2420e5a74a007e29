package integration

import (
	"fmt"

	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats reads uptime and memory pressure of the machine running the service
func HostStats() (*entities.HostStats, error) {
	uptime, err := host.Uptime()
	if err != nil {
		return nil, fmt.Errorf("failed to read host uptime: %w", err)
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to read memory stats: %w", err)
	}
	return &entities.HostStats{
		Uptime:            uptime,
		MemoryUsedPercent: vm.UsedPercent,
	}, nil
}
