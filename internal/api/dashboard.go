package api

import (
	"embed"
	"html/template"

	"github.com/abelzeko/soil-monitor/internal/entities"
)

//go:embed templates
var templateFiles embed.FS

const dashboardTemplate = "dashboard.html"

// dashboardData is everything the status page renders
type dashboardData struct {
	Health      entities.Health
	Profile     entities.PlantProfile
	Status      entities.SoilStatus
	StatusError string
	Breaches    []entities.Breach
	History     []entities.Reading
}

func loadTemplates() *template.Template {
	return template.Must(template.ParseFS(templateFiles, "templates/*.html"))
}
