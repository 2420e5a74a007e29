package integration

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockedMonitorStaysInRange(t *testing.T) {
	m := NewMockedMonitor(rand.NewPCG(1, 2))
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		saturation, err := m.SoilSaturation(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, saturation, 0)
		assert.LessOrEqual(t, saturation, 100)

		temp, err := m.AirTemp(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, temp, 0.0)
		assert.LessOrEqual(t, temp, 50.0)
	}
	assert.Equal(t, "Mocked Soil Monitor", m.Name())
}

func TestMonitorFactoryUnknownKey(t *testing.T) {
	f := DefaultMonitorFactory()
	assert.Equal(t, []string{StemmaMonitorKey, MockedMonitorKey}, f.Keys())

	_, err := f.Get("thermocouple", MonitorOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMonitor)
	assert.Contains(t, err.Error(), "thermocouple")
}

func TestNewMonitorDefaultsToMocked(t *testing.T) {
	m, err := NewMonitor(DefaultMonitorFactory(), "", MonitorOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Mocked Soil Monitor", m.Name())
	assert.NoError(t, m.Close())
}

type fixedMonitor struct {
	saturation int
	temp       float64
	err        error
}

func (f *fixedMonitor) SoilSaturation(context.Context) (int, error) { return f.saturation, f.err }
func (f *fixedMonitor) AirTemp(context.Context) (float64, error)    { return f.temp, f.err }
func (f *fixedMonitor) Name() string                                { return "Fixed" }

func TestMonitorDelegates(t *testing.T) {
	f := NewMonitorFactory()
	f.Register("fixed", func(MonitorOptions) (SoilMonitor, error) {
		return &fixedMonitor{saturation: 42, temp: 21.5}, nil
	})

	m, err := NewMonitor(f, "fixed", MonitorOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			saturation, err := m.SoilSaturation(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 42, saturation)
		}()
	}
	wg.Wait()

	temp, err := m.AirTemp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 21.5, temp)
	assert.Equal(t, "Fixed", m.Name())
}

func TestMonitorHonoursCancelledContext(t *testing.T) {
	f := NewMonitorFactory()
	f.Register("fixed", func(MonitorOptions) (SoilMonitor, error) {
		return &fixedMonitor{}, nil
	})
	m, err := NewMonitor(f, "fixed", MonitorOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.SoilSaturation(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestNewMonitorPropagatesConstructorError(t *testing.T) {
	f := NewMonitorFactory()
	f.Register("broken", func(MonitorOptions) (SoilMonitor, error) {
		return nil, errors.New("no bus")
	})
	_, err := NewMonitor(f, "broken", MonitorOptions{})
	assert.Error(t, err)
}
