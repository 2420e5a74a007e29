package entities

import (
	"fmt"
	"strings"
)

// BreachKind names which limit a reading crossed
type BreachKind string

const (
	BreachSaturationLow  BreachKind = "saturation_low"
	BreachSaturationHigh BreachKind = "saturation_high"
	BreachTempLow        BreachKind = "temp_low"
	BreachTempHigh       BreachKind = "temp_high"
)

// Breach is a single limit crossed by a reading
type Breach struct {
	Kind  BreachKind `json:"kind"`
	Value float64    `json:"value"`
	Limit float64    `json:"limit"`
}

func (b Breach) String() string {
	return fmt.Sprintf("%s (%.1f, limit %.1f)", b.Kind, b.Value, b.Limit)
}

// PlantProfile holds the comfortable soil and air ranges for a plant
type PlantProfile struct {
	Name          string  `json:"name" yaml:"name"`
	MinSaturation int     `json:"minSaturation" yaml:"min_saturation"`
	MaxSaturation int     `json:"maxSaturation" yaml:"max_saturation"`
	MinTemp       float64 `json:"minTemp" yaml:"min_temp"`
	MaxTemp       float64 `json:"maxTemp" yaml:"max_temp"`
}

// DefaultPlantProfile is used when no profile file is configured
var DefaultPlantProfile = PlantProfile{
	Name:          "default",
	MinSaturation: 20,
	MaxSaturation: 80,
	MinTemp:       5,
	MaxTemp:       35,
}

// Validate checks that the ranges are well formed
func (p PlantProfile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("plant profile has no name")
	}
	if p.MinSaturation < 0 || p.MaxSaturation > 100 || p.MinSaturation > p.MaxSaturation {
		return fmt.Errorf("plant profile %s: invalid saturation range %d..%d", p.Name, p.MinSaturation, p.MaxSaturation)
	}
	if p.MinTemp > p.MaxTemp {
		return fmt.Errorf("plant profile %s: invalid temperature range %.1f..%.1f", p.Name, p.MinTemp, p.MaxTemp)
	}
	return nil
}

// Check returns every limit the status crosses. Limits are inclusive.
func (p PlantProfile) Check(status SoilStatus) []Breach {
	breaches := []Breach{}
	if status.Saturation < p.MinSaturation {
		breaches = append(breaches, Breach{Kind: BreachSaturationLow, Value: float64(status.Saturation), Limit: float64(p.MinSaturation)})
	}
	if status.Saturation > p.MaxSaturation {
		breaches = append(breaches, Breach{Kind: BreachSaturationHigh, Value: float64(status.Saturation), Limit: float64(p.MaxSaturation)})
	}
	if status.Temp < p.MinTemp {
		breaches = append(breaches, Breach{Kind: BreachTempLow, Value: status.Temp, Limit: p.MinTemp})
	}
	if status.Temp > p.MaxTemp {
		breaches = append(breaches, Breach{Kind: BreachTempHigh, Value: status.Temp, Limit: p.MaxTemp})
	}
	return breaches
}
