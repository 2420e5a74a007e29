package api

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/abelzeko/soil-monitor/internal/metrics"
	"github.com/abelzeko/soil-monitor/internal/repository"
	"github.com/abelzeko/soil-monitor/internal/usecases"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	requestIDHeader  = "X-Request-ID"
	shutdownTimeout  = 5 * time.Second
	dashboardHistory = 20
)

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// HTTPServer serves the soil monitor REST API, dashboard and live stream
type HTTPServer struct {
	soil       *usecases.SoilUseCase
	health     *usecases.HealthUseCase
	hub        *Hub
	router     *gin.Engine
	httpServer *http.Server
}

// NewHTTPServer creates the gin router with all routes and middleware registered
func NewHTTPServer(cfg ServerConfig, soil *usecases.SoilUseCase, health *usecases.HealthUseCase, hub *Hub) *HTTPServer {
	s := &HTTPServer{
		soil:   soil,
		health: health,
		hub:    hub,
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(), metrics.GinMiddleware(), cors.New(corsConfig(cfg.CORSOrigins)))
	r.SetHTMLTemplate(loadTemplates())

	r.GET("/", s.getSoilStatus)
	r.GET("/health", s.getHealth)
	r.GET("/profile", s.getProfile)
	r.GET("/readings", s.getReadings)
	r.GET("/readings/latest", s.getLatestReading)
	r.GET("/readings/export", s.exportReadings)
	r.POST("/readings/sample", s.sampleNow)
	r.GET("/dashboard", s.getDashboard)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if hub != nil {
		r.GET("/ws", func(c *gin.Context) { hub.ServeWS(c.Writer, c.Request) })
	}

	s.router = r
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down HTTP server...")
	if s.hub != nil {
		s.hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown failed: %w", err)
	}
	log.Println("HTTP server shut down gracefully")
	return nil
}

func (s *HTTPServer) getSoilStatus(c *gin.Context) {
	status, err := s.soil.GetSoilStatus(c.Request.Context())
	if err != nil {
		s.monitorError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *HTTPServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.health.GetHealth())
}

func (s *HTTPServer) getProfile(c *gin.Context) {
	c.JSON(http.StatusOK, s.soil.Profile())
}

func (s *HTTPServer) getReadings(c *gin.Context) {
	since, limit, ok := historyParams(c)
	if !ok {
		return
	}
	readings, err := s.soil.GetHistory(since, limit)
	if err != nil {
		log.Printf("Error fetching readings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch readings"})
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (s *HTTPServer) getLatestReading(c *gin.Context) {
	reading, err := s.soil.GetLatestReading()
	if errors.Is(err, repository.ErrNoReadings) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No readings stored yet"})
		return
	}
	if err != nil {
		log.Printf("Error fetching latest reading: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch latest reading"})
		return
	}
	c.JSON(http.StatusOK, reading)
}

func (s *HTTPServer) exportReadings(c *gin.Context) {
	since, limit, ok := historyParams(c)
	if !ok {
		return
	}
	if c.Query("limit") == "" {
		limit = usecases.MaxHistoryLimit
	}
	readings, err := s.soil.GetHistory(since, limit)
	if err != nil {
		log.Printf("Error fetching readings for export: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch readings"})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=soil_readings.csv")
	if err := writeReadingsCSV(c.Writer, readings); err != nil {
		log.Printf("Error writing CSV export of %d readings: %v", len(readings), err)
	}
}

// writeReadingsCSV writes a header row and one row per reading
func writeReadingsCSV(w io.Writer, readings []entities.Reading) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"timestamp", "monitor", "saturation", "temp", "breaches"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range readings {
		kinds := make([]string, 0, len(r.Breaches))
		for _, b := range r.Breaches {
			kinds = append(kinds, string(b.Kind))
		}
		record := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Monitor,
			strconv.Itoa(r.Saturation),
			strconv.FormatFloat(r.Temp, 'f', 1, 64),
			strings.Join(kinds, ";"),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write reading %d: %w", r.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return nil
}

func (s *HTTPServer) sampleNow(c *gin.Context) {
	reading, err := s.soil.SampleSoil(c.Request.Context())
	if err != nil {
		s.monitorError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reading)
}

func (s *HTTPServer) getDashboard(c *gin.Context) {
	data := dashboardData{
		Health:  s.health.GetHealth(),
		Profile: s.soil.Profile(),
	}

	status, err := s.soil.GetSoilStatus(c.Request.Context())
	if err != nil {
		log.Printf("Dashboard could not read soil monitor: %v", err)
		data.StatusError = "Soil monitor unavailable: " + err.Error()
	} else {
		data.Status = status
		data.Breaches = data.Profile.Check(status)
	}

	history, err := s.soil.GetHistory(time.Time{}, dashboardHistory)
	if err != nil {
		log.Printf("Dashboard could not load history: %v", err)
	}
	data.History = history

	c.HTML(http.StatusOK, dashboardTemplate, data)
}

func (s *HTTPServer) monitorError(c *gin.Context, err error) {
	if usecases.IsUnavailable(err) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	log.Printf("Error reading soil monitor: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// historyParams parses ?since=RFC3339&limit=N, writing a 400 on bad input
func historyParams(c *gin.Context) (time.Time, int, bool) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid since, expected RFC3339 timestamp"})
			return time.Time{}, 0, false
		}
		since = t
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit, expected a non-negative integer (0 uses the default)"})
			return time.Time{}, 0, false
		}
		limit = n
	}
	return since, limit, true
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type", requestIDHeader},
		MaxAge:       12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(log.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"duration":   time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")
			return
		}
		entry.Debug("Request handled")
	}
}

var _ usecases.Notifier = (*Hub)(nil)
