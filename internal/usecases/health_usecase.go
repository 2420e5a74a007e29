package usecases

import (
	"time"

	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/abelzeko/soil-monitor/internal/integration"
	log "github.com/sirupsen/logrus"
)

// HostStatsFunc reads statistics about the host machine
type HostStatsFunc func() (*entities.HostStats, error)

// HealthUseCase generates health information about the service and its configuration
type HealthUseCase struct {
	start     time.Time
	monitor   integration.SoilMonitor
	hostStats HostStatsFunc
	now       func() time.Time
}

// NewHealthUseCase creates a health use case; uptime counts from this call
func NewHealthUseCase(monitor integration.SoilMonitor, hostStats HostStatsFunc) *HealthUseCase {
	return &HealthUseCase{
		start:     time.Now(),
		monitor:   monitor,
		hostStats: hostStats,
		now:       time.Now,
	}
}

// GetHealth returns the uptime in whole seconds and the soil monitor in use
func (uc *HealthUseCase) GetHealth() entities.Health {
	uptime := int64(uc.now().Sub(uc.start) / time.Second)
	if uptime < 0 {
		uptime = 0
	}
	health := entities.Health{
		Uptime:      uptime,
		SoilMonitor: uc.monitor.Name(),
	}
	if uc.hostStats != nil {
		stats, err := uc.hostStats()
		if err != nil {
			log.Debugf("Host stats unavailable: %v", err)
		} else {
			health.Host = stats
		}
	}
	return health
}
