// Package entities contains the core domain objects for the soil-monitor application
package entities

import (
	"time"
)

// Reading represents a single stored soil sample
type Reading struct {
	ID         int64     `json:"id"`
	Monitor    string    `json:"monitor"`    // Name of the monitor implementation that produced it
	Saturation int       `json:"saturation"` // Soil saturation in percent, 0..100
	Temp       float64   `json:"temp"`       // Air temperature in °C
	Timestamp  time.Time `json:"timestamp"`  // When the sample was taken
	Breaches   []Breach  `json:"breaches"`   // Plant profile limits crossed by this sample
}

// Abnormal reports whether the reading crossed any plant profile limit
func (r Reading) Abnormal() bool {
	return len(r.Breaches) > 0
}

// SoilStatus is the live view of the soil monitor
type SoilStatus struct {
	Saturation int     `json:"saturation"`
	Temp       float64 `json:"temp"`
}

// HostStats describes the machine the service runs on
type HostStats struct {
	Uptime            uint64  `json:"uptime"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
}

// Health describes the service itself and its current configuration
type Health struct {
	Uptime      int64      `json:"uptime"`
	SoilMonitor string     `json:"soilMonitor"`
	Host        *HostStats `json:"host,omitempty"`
}
