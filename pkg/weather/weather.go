// Package weather serves current conditions, a daily forecast and farming advice
// for a location.
package weather

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/evansochadeka/BenFarm/pkg/config"
	"github.com/evansochadeka/BenFarm/pkg/metrics"
	"github.com/evansochadeka/BenFarm/pkg/repository"
)

const defaultCacheTTL = 10 * time.Minute

type Cache interface {
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error
}

type Recommendations struct {
	Irrigation  []string `json:"irrigation"`
	Planting    []string `json:"planting"`
	Harvesting  []string `json:"harvesting"`
	PestDisease []string `json:"pest_disease"`
	General     []string `json:"general"`
}

type Report struct {
	Location        string          `json:"location"`
	Current         *Conditions     `json:"current"`
	Daily           []ForecastEntry `json:"daily"`
	Recommendations Recommendations `json:"recommendations"`
	Warnings        []string        `json:"warnings,omitempty"`
}

type Service struct {
	client  WeatherClient
	cache   Cache
	metrics *metrics.Metrics
	cfg     config.WeatherConfig
	logger  *zap.Logger
}

// NewService builds the service. cache may be nil.
func NewService(client WeatherClient, cache Cache, m *metrics.Metrics, cfg config.WeatherConfig, logger *zap.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if cfg.DefaultLocation == "" {
		cfg.DefaultLocation = "Nairobi"
	}
	return &Service{client: client, cache: cache, metrics: m, cfg: cfg, logger: logger.Named("weather")}
}

func cacheKey(location string) string {
	return "weather:" + strings.ToLower(location)
}

// Report never fails. Upstream errors leave the affected parts empty and add a warning.
func (s *Service) Report(ctx context.Context, location string) *Report {
	location = strings.TrimSpace(location)
	if location == "" {
		location = s.cfg.DefaultLocation
	}
	key := cacheKey(location)
	if s.cache != nil {
		var cached Report
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return &cached
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("Weather cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	r := &Report{Location: location}
	current, err := s.client.Current(ctx, location)
	s.metrics.ObserveExternal("openweather", err)
	if err != nil {
		s.logger.Warn("Current weather unavailable", zap.String("location", location), zap.Error(err))
		r.Warnings = append(r.Warnings, "current weather is unavailable")
	} else {
		r.Current = current
		r.Location = current.Location
	}

	entries, err := s.client.Forecast(ctx, location)
	s.metrics.ObserveExternal("openweather", err)
	if err != nil {
		s.logger.Warn("Forecast unavailable", zap.String("location", location), zap.Error(err))
		r.Warnings = append(r.Warnings, "forecast is unavailable")
	} else {
		r.Daily = DailyForecast(entries)
	}
	r.Recommendations = Recommend(r.Current)

	// degraded reports are never cached
	if s.cache != nil && len(r.Warnings) == 0 {
		if err := s.cache.SetJSON(ctx, key, r, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("Weather cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return r
}

// Recommend applies the farming rules to current conditions. Nil conditions give none.
func Recommend(c *Conditions) Recommendations {
	r := Recommendations{
		Irrigation:  []string{},
		Planting:    []string{},
		Harvesting:  []string{},
		PestDisease: []string{},
		General:     []string{},
	}
	if c == nil {
		return r
	}

	switch {
	case c.Temp > 30:
		r.Irrigation = append(r.Irrigation, "Increase irrigation frequency - high temperatures detected")
		r.General = append(r.General, "Provide shade for sensitive seedlings")
	case c.Temp < 15:
		r.General = append(r.General, "Protect crops from cold stress - use mulch or row covers")
	}

	switch {
	case c.Humidity > 70:
		r.PestDisease = append(r.PestDisease,
			"High humidity - monitor for fungal diseases like late blight",
			"Apply preventive fungicides on susceptible crops")
	case c.Humidity < 40:
		r.Irrigation = append(r.Irrigation, "Low humidity - increase misting for leafy vegetables")
	}

	if strings.Contains(strings.ToLower(c.Description), "rain") {
		r.Planting = append(r.Planting, "Good time for transplanting - soil moisture is adequate")
		r.General = append(r.General, "Check for waterlogging in poorly drained areas")
	}

	r.General = append(r.General, "Contact your local agrovet for region-specific inputs")
	return r
}
