// Package config loads service configuration from the environment, an optional
// .env file and an optional YAML file of plant profiles.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/soil-monitor/internal/integration"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds every setting the binaries read from the environment
type Config struct {
	Port string `env:"PORT,default=8080"`
	// CORSOrigins is separated by ';', e.g. "http://a.example;http://b.example"
	CORSOrigins []string `env:"CORS_ORIGINS,default=http://localhost:3000"`

	SoilMonitor   string `env:"SOIL_MONITOR"`
	I2CBus        string `env:"I2C_BUS"`
	StemmaAddress string `env:"STEMMA_ADDRESS,default=0x36"`
	StemmaDry     int    `env:"STEMMA_DRY,default=200"`
	StemmaWet     int    `env:"STEMMA_WET,default=2000"`

	DBPath         string        `env:"DB_PATH,default=data/soildata.db"`
	SampleSchedule string        `env:"SAMPLE_SCHEDULE,default=*/5 * * * *"`
	PruneSchedule  string        `env:"PRUNE_SCHEDULE,default=0 3 * * *"`
	Retention      time.Duration `env:"RETENTION,default=720h"`

	PlantsFile string `env:"PLANTS_FILE"`
	Plant      string `env:"PLANT,default=default"`

	TelegramToken    string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64         `env:"TELEGRAM_ALERT_CHAT_ID"`
	AlertMinInterval time.Duration `env:"ALERT_MIN_INTERVAL,default=30m"`
	OpenAIKey        string        `env:"OPENAI_API_KEY"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=text"`
}

// legacyMonitorEnv is the variable name older deployments used to pick the monitor
const legacyMonitorEnv = "soil_monitor"

// Load reads .env (if present) and decodes the environment into a Config
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv decodes the current environment into a Config
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	if cfg.SoilMonitor == "" {
		cfg.SoilMonitor = os.Getenv(legacyMonitorEnv)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that cannot work together
func (c *Config) Validate() error {
	if _, err := c.StemmaI2CAddress(); err != nil {
		return err
	}
	if c.StemmaDry >= c.StemmaWet {
		return fmt.Errorf("STEMMA_DRY (%d) must be below STEMMA_WET (%d)", c.StemmaDry, c.StemmaWet)
	}
	for _, origin := range c.CORSOrigins {
		if strings.Contains(origin, ",") {
			return fmt.Errorf("invalid CORS_ORIGINS entry %q: separate origins with ';'", origin)
		}
	}
	if c.Retention < 0 {
		return fmt.Errorf("RETENTION must not be negative, got %s", c.Retention)
	}
	return nil
}

// StemmaI2CAddress parses the configured sensor address (decimal or 0x-prefixed hex)
func (c *Config) StemmaI2CAddress() (uint16, error) {
	addr, err := strconv.ParseUint(strings.TrimSpace(c.StemmaAddress), 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid STEMMA_ADDRESS %q: %w", c.StemmaAddress, err)
	}
	return uint16(addr), nil
}

// MonitorOptions converts the hardware settings for the monitor factory
func (c *Config) MonitorOptions() (integration.MonitorOptions, error) {
	addr, err := c.StemmaI2CAddress()
	if err != nil {
		return integration.MonitorOptions{}, err
	}
	return integration.MonitorOptions{
		I2CBus:        c.I2CBus,
		StemmaAddress: addr,
		StemmaDry:     c.StemmaDry,
		StemmaWet:     c.StemmaWet,
	}, nil
}

// ConfigureLogging applies the configured level and format to the standard logrus logger
func (c *Config) ConfigureLogging() {
	log.SetOutput(os.Stdout)
	log.SetReportCaller(true)

	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}
