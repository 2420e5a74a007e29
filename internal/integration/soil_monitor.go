// Package integration handles interactions with soil monitor hardware and outbound services
package integration

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrMonitorUnavailable is returned by monitors whose hardware could not be set up
var ErrMonitorUnavailable = errors.New("soil monitor not available")

// ErrUnknownMonitor is returned when no implementation is registered for a key
var ErrUnknownMonitor = errors.New("unknown soil monitor")

// Monitor keys registered by default
const (
	MockedMonitorKey = "mocked"
	StemmaMonitorKey = "adafruitstemma"
)

// SoilMonitor defines interactions with soil monitor implementations
type SoilMonitor interface {
	// SoilSaturation returns the soil saturation as a percentage, 0..100
	SoilSaturation(ctx context.Context) (int, error)
	// AirTemp returns the air temperature in degrees celsius
	AirTemp(ctx context.Context) (float64, error)
	// Name returns a human readable name for the implementation
	Name() string
}

// MonitorOptions carries the hardware settings a constructor may need
type MonitorOptions struct {
	I2CBus        string // periph bus name, empty for the first available bus
	StemmaAddress uint16
	StemmaDry     int // raw capacitance read in dry soil
	StemmaWet     int // raw capacitance read in saturated soil
}

// MonitorConstructor builds a soil monitor implementation
type MonitorConstructor func(opts MonitorOptions) (SoilMonitor, error)

// MonitorFactory returns an instance of a soil monitor for a registered key
type MonitorFactory struct {
	mu           sync.RWMutex
	constructors map[string]MonitorConstructor
}

// NewMonitorFactory creates an empty factory
func NewMonitorFactory() *MonitorFactory {
	return &MonitorFactory{constructors: make(map[string]MonitorConstructor)}
}

// DefaultMonitorFactory creates a factory with the built-in implementations registered
func DefaultMonitorFactory() *MonitorFactory {
	f := NewMonitorFactory()
	f.Register(MockedMonitorKey, func(MonitorOptions) (SoilMonitor, error) {
		return NewMockedMonitor(nil), nil
	})
	f.Register(StemmaMonitorKey, NewStemmaMonitor)
	return f
}

// Register associates a constructor with a key, replacing any previous one
func (f *MonitorFactory) Register(key string, constructor MonitorConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[key] = constructor
}

// Keys returns the registered keys in sorted order
func (f *MonitorFactory) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	keys := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get builds the soil monitor registered under key
func (f *MonitorFactory) Get(key string, opts MonitorOptions) (SoilMonitor, error) {
	f.mu.RLock()
	constructor, ok := f.constructors[key]
	f.mu.RUnlock()
	if !ok || constructor == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMonitor, key)
	}
	return constructor(opts)
}

// Monitor delegates to the configured hardware implementation.
// Calls are serialised: implementations share a single device.
type Monitor struct {
	mu   sync.Mutex
	impl SoilMonitor
}

// NewMonitor selects the implementation registered under key, defaulting to the mocked monitor
func NewMonitor(factory *MonitorFactory, key string, opts MonitorOptions) (*Monitor, error) {
	if key == "" {
		key = MockedMonitorKey
	}
	impl, err := factory.Get(key, opts)
	if err != nil {
		return nil, err
	}
	log.Printf("Using soil monitor %q (%s)", key, impl.Name())
	return &Monitor{impl: impl}, nil
}

// SoilSaturation returns the soil saturation as a percentage
func (m *Monitor) SoilSaturation(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.impl.SoilSaturation(ctx)
}

// AirTemp returns the air temperature in degrees celsius
func (m *Monitor) AirTemp(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return m.impl.AirTemp(ctx)
}

// Name returns the name of the underlying implementation
func (m *Monitor) Name() string {
	return m.impl.Name()
}

// Close releases the underlying hardware if it holds any
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.impl.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
