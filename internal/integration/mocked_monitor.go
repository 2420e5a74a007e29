package integration

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
)

// MockedMonitor returns random values, for testing and local running
type MockedMonitor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockedMonitor creates a mocked monitor. A nil source uses a random seed.
func NewMockedMonitor(src rand.Source) *MockedMonitor {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &MockedMonitor{rng: rand.New(src)}
}

// SoilSaturation returns a random saturation from 0 to 100
func (m *MockedMonitor) SoilSaturation(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.IntN(101), nil
}

// AirTemp returns a random temperature in [0, 50)
func (m *MockedMonitor) AirTemp(context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return roundTenth(m.rng.Float64() * 50), nil
}

// Name returns the name of the mocked monitor
func (m *MockedMonitor) Name() string {
	return "Mocked Soil Monitor"
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
