package integration

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Seesaw register map used by the STEMMA soil sensor
const (
	seesawStatusBase  byte = 0x00
	seesawStatusHWID  byte = 0x01
	seesawStatusTemp  byte = 0x04
	seesawTouchBase   byte = 0x0F
	seesawTouchOffset byte = 0x10

	// DefaultStemmaAddress is the factory I2C address of the sensor
	DefaultStemmaAddress uint16 = 0x36
	// DefaultStemmaDry and DefaultStemmaWet bound the raw capacitance range
	DefaultStemmaDry = 200
	DefaultStemmaWet = 2000

	maxMoistureRaw      = 4095
	maxMoistureAttempts = 4
)

var seesawHardwareIDs = map[byte]bool{
	0x55: true, // SAMD09
	0x84: true, // ATtiny806
	0x85: true, // ATtiny807
	0x86: true, // ATtiny816
	0x87: true, // ATtiny817
}

// seesaw speaks the Adafruit seesaw register protocol
type seesaw struct {
	dev   *i2c.Dev
	delay time.Duration
	sleep func(time.Duration)
}

func (s *seesaw) read(base, reg byte, buf []byte) error {
	if err := s.dev.Tx([]byte{base, reg}, nil); err != nil {
		return fmt.Errorf("failed to select register %#02x/%#02x: %w", base, reg, err)
	}
	s.sleep(s.delay)
	if err := s.dev.Tx(nil, buf); err != nil {
		return fmt.Errorf("failed to read register %#02x/%#02x: %w", base, reg, err)
	}
	return nil
}

func (s *seesaw) hardwareID() (byte, error) {
	buf := make([]byte, 1)
	if err := s.read(seesawStatusBase, seesawStatusHWID, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (s *seesaw) moisture() (int, error) {
	buf := make([]byte, 2)
	for attempt := 0; attempt < maxMoistureAttempts; attempt++ {
		if err := s.read(seesawTouchBase, seesawTouchOffset, buf); err != nil {
			return 0, err
		}
		raw := int(binary.BigEndian.Uint16(buf))
		if raw <= maxMoistureRaw {
			return raw, nil
		}
		s.sleep(time.Millisecond)
	}
	return 0, fmt.Errorf("could not get a valid moisture reading after %d attempts", maxMoistureAttempts)
}

func (s *seesaw) temperature() (float64, error) {
	buf := make([]byte, 4)
	if err := s.read(seesawStatusBase, seesawStatusTemp, buf); err != nil {
		return 0, err
	}
	buf[0] &= 0x3F
	raw := binary.BigEndian.Uint32(buf)
	return float64(raw) / (1 << 16), nil
}

// StemmaMonitor reads the Adafruit STEMMA I2C capacitive soil sensor
type StemmaMonitor struct {
	ss     *seesaw
	bus    io.Closer
	loaded bool
	dry    int
	wet    int
}

// NewStemmaMonitor opens the I2C bus and probes the sensor. A missing bus or
// sensor does not fail construction: the monitor reports ErrMonitorUnavailable on every read.
func NewStemmaMonitor(opts MonitorOptions) (SoilMonitor, error) {
	if _, err := host.Init(); err != nil {
		log.Printf("Unable to load periph host drivers: %v", err)
		return &StemmaMonitor{}, nil
	}
	bus, err := i2creg.Open(opts.I2CBus)
	if err != nil {
		log.Printf("Unable to open I2C bus %q: %v", opts.I2CBus, err)
		return &StemmaMonitor{}, nil
	}
	m := newStemmaMonitor(bus, opts)
	if !m.loaded {
		bus.Close()
	}
	return m, nil
}

func newStemmaMonitor(bus i2c.BusCloser, opts MonitorOptions) *StemmaMonitor {
	if opts.StemmaAddress == 0 {
		opts.StemmaAddress = DefaultStemmaAddress
	}
	if opts.StemmaDry == 0 && opts.StemmaWet == 0 {
		opts.StemmaDry, opts.StemmaWet = DefaultStemmaDry, DefaultStemmaWet
	}
	m := &StemmaMonitor{
		ss: &seesaw{
			dev:   &i2c.Dev{Addr: opts.StemmaAddress, Bus: bus},
			delay: 5 * time.Millisecond,
			sleep: time.Sleep,
		},
		bus: bus,
		dry: opts.StemmaDry,
		wet: opts.StemmaWet,
	}

	id, err := m.ss.hardwareID()
	switch {
	case err != nil:
		log.Printf("Adafruit stemma device not responding at %#02x: %v", opts.StemmaAddress, err)
	case !seesawHardwareIDs[id]:
		log.Printf("Unexpected seesaw hardware id %#02x at %#02x", id, opts.StemmaAddress)
	default:
		m.loaded = true
		log.Printf("Loaded Adafruit stemma device at %#02x (hw id %#02x)", opts.StemmaAddress, id)
	}
	return m
}

// SoilSaturation returns the calibrated soil saturation as a percentage
func (m *StemmaMonitor) SoilSaturation(ctx context.Context) (int, error) {
	if !m.loaded {
		return 0, ErrMonitorUnavailable
	}
	raw, err := m.ss.moisture()
	if err != nil {
		return 0, fmt.Errorf("failed to read soil moisture: %w", err)
	}
	return saturationPercent(raw, m.dry, m.wet), nil
}

// AirTemp returns the temperature measured by the sensor's die, in celsius
func (m *StemmaMonitor) AirTemp(ctx context.Context) (float64, error) {
	if !m.loaded {
		return 0, ErrMonitorUnavailable
	}
	temp, err := m.ss.temperature()
	if err != nil {
		return 0, fmt.Errorf("failed to read temperature: %w", err)
	}
	return roundTenth(temp), nil
}

// Name returns the name of the soil monitor
func (m *StemmaMonitor) Name() string {
	return "Adafruit Stemma"
}

// Close releases the I2C bus
func (m *StemmaMonitor) Close() error {
	if m.bus == nil || !m.loaded {
		return nil
	}
	return m.bus.Close()
}

// saturationPercent maps a raw capacitance onto 0..100 between the dry and wet calibration points
func saturationPercent(raw, dry, wet int) int {
	if wet == dry {
		return 0
	}
	pct := float64(raw-dry) * 100 / float64(wet-dry)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return int(pct + 0.5)
}
