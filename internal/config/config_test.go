package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("SOIL_MONITOR", "")
	t.Setenv("soil_monitor", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "*/5 * * * *", cfg.SampleSchedule)
	assert.Equal(t, 720*time.Hour, cfg.Retention)
	assert.Equal(t, 30*time.Minute, cfg.AlertMinInterval)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.SoilMonitor)

	addr, err := cfg.StemmaI2CAddress()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x36), addr)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SOIL_MONITOR", "adafruitstemma")
	t.Setenv("STEMMA_ADDRESS", "0x37")
	t.Setenv("RETENTION", "48h")
	t.Setenv("TELEGRAM_ALERT_CHAT_ID", "-100123")
	t.Setenv("CORS_ORIGINS", "http://a.example;http://b.example")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "adafruitstemma", cfg.SoilMonitor)
	assert.Equal(t, 48*time.Hour, cfg.Retention)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)

	addr, err := cfg.StemmaI2CAddress()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x37), addr)
}

func TestFromEnvLegacyMonitorVariable(t *testing.T) {
	t.Setenv("SOIL_MONITOR", "")
	t.Setenv("soil_monitor", "mocked")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mocked", cfg.SoilMonitor)
}

func TestFromEnvRejectsBadCalibration(t *testing.T) {
	t.Setenv("STEMMA_DRY", "2000")
	t.Setenv("STEMMA_WET", "200")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnvRejectsBadAddress(t *testing.T) {
	t.Setenv("STEMMA_ADDRESS", "nope")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestPlantProfiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plants:
  - name: basil
    min_saturation: 40
    max_saturation: 70
    min_temp: 15
    max_temp: 30
  - name: cactus
    min_saturation: 5
    max_saturation: 30
    min_temp: 10
    max_temp: 40
`), 0644))

	profiles, err := LoadPlantProfiles(path)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)
	assert.Equal(t, 40, profiles["basil"].MinSaturation)

	cfg := &Config{PlantsFile: path, Plant: "cactus"}
	p, err := cfg.PlantProfile()
	require.NoError(t, err)
	assert.Equal(t, 40.0, p.MaxTemp)

	cfg.Plant = "orchid"
	_, err = cfg.PlantProfile()
	assert.Error(t, err)
}

func TestPlantProfilesRejectsInvalidRanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plants:
  - name: fern
    min_saturation: 90
    max_saturation: 10
`), 0644))

	_, err := LoadPlantProfiles(path)
	assert.Error(t, err)
}

func TestPlantProfileWithoutFileIsDefault(t *testing.T) {
	p, err := (&Config{}).PlantProfile()
	require.NoError(t, err)
	assert.Equal(t, "default", p.Name)
}

func TestMonitorOptions(t *testing.T) {
	t.Setenv("I2C_BUS", "/dev/i2c-1")
	t.Setenv("STEMMA_ADDRESS", "55")
	t.Setenv("STEMMA_DRY", "300")
	t.Setenv("STEMMA_WET", "1800")

	cfg, err := FromEnv()
	require.NoError(t, err)
	opts, err := cfg.MonitorOptions()
	require.NoError(t, err)
	assert.Equal(t, "/dev/i2c-1", opts.I2CBus)
	assert.Equal(t, uint16(55), opts.StemmaAddress)
	assert.Equal(t, 300, opts.StemmaDry)
	assert.Equal(t, 1800, opts.StemmaWet)
}

func TestFromEnvRejectsCommaSeparatedOrigins(t *testing.T) {
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "separate origins with ';'")
}
