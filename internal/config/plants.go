package config

import (
	"fmt"
	"os"

	"github.com/abelzeko/soil-monitor/internal/entities"
	"gopkg.in/yaml.v3"
)

type plantsFile struct {
	Plants []entities.PlantProfile `yaml:"plants"`
}

// LoadPlantProfiles reads plant profiles from a YAML file. The built-in
// default profile is always present unless the file overrides it.
func LoadPlantProfiles(path string) (map[string]entities.PlantProfile, error) {
	profiles := map[string]entities.PlantProfile{
		entities.DefaultPlantProfile.Name: entities.DefaultPlantProfile,
	}
	if path == "" {
		return profiles, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plants file: %w", err)
	}

	var file plantsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plants file %s: %w", path, err)
	}
	for _, p := range file.Plants {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("plants file %s: %w", path, err)
		}
		profiles[p.Name] = p
	}
	return profiles, nil
}

// PlantProfile resolves the profile selected by PLANT
func (c *Config) PlantProfile() (entities.PlantProfile, error) {
	profiles, err := LoadPlantProfiles(c.PlantsFile)
	if err != nil {
		return entities.PlantProfile{}, err
	}
	name := c.Plant
	if name == "" {
		name = entities.DefaultPlantProfile.Name
	}
	p, ok := profiles[name]
	if !ok {
		return entities.PlantProfile{}, fmt.Errorf("unknown plant profile %q", name)
	}
	return p, nil
}
