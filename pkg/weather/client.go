package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/evansochadeka/BenFarm/pkg/config"
)

var ErrNotConfigured = errors.New("weather API key is not configured")

type Conditions struct {
	Location    string  `json:"location"`
	Temp        float64 `json:"temp"`
	FeelsLike   float64 `json:"feels_like"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Humidity    int     `json:"humidity"`
	Pressure    int     `json:"pressure"`
	WindSpeed   float64 `json:"wind_speed"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

// ForecastEntry is one three-hourly forecast slot.
type ForecastEntry struct {
	Time        string  `json:"time"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	Humidity    int     `json:"humidity"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
	Rain        float64 `json:"rain"`
}

type WeatherClient interface {
	Current(ctx context.Context, location string) (*Conditions, error)
	Forecast(ctx context.Context, location string) ([]ForecastEntry, error)
}

type owMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	TempMin   float64 `json:"temp_min"`
	TempMax   float64 `json:"temp_max"`
	Humidity  int     `json:"humidity"`
	Pressure  int     `json:"pressure"`
}

type owWeather struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owCurrent struct {
	Name    string      `json:"name"`
	Main    owMain      `json:"main"`
	Weather []owWeather `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type owForecast struct {
	List []struct {
		DtTxt   string      `json:"dt_txt"`
		Main    owMain      `json:"main"`
		Weather []owWeather `json:"weather"`
		Rain    struct {
			ThreeHours float64 `json:"3h"`
		} `json:"rain"`
	} `json:"list"`
}

type owError struct {
	Message string `json:"message"`
}

// OpenWeatherClient queries the OpenWeather 2.5 API in metric units.
type OpenWeatherClient struct {
	http   *resty.Client
	apiKey string
}

func NewOpenWeatherClient(cfg config.WeatherConfig) *OpenWeatherClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OpenWeatherClient{
		http:   resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(timeout),
		apiKey: cfg.APIKey,
	}
}

func (c *OpenWeatherClient) get(ctx context.Context, path, location string, result interface{}) error {
	if c.apiKey == "" {
		return ErrNotConfigured
	}
	var apiErr owError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":     location,
			"appid": c.apiKey,
			"units": "metric",
		}).
		SetResult(result).
		SetError(&apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("openweather request failed: %w", err)
	}
	if resp.IsError() {
		msg := apiErr.Message
		if msg == "" {
			msg = resp.Status()
		}
		return fmt.Errorf("openweather returned %d: %s", resp.StatusCode(), msg)
	}
	return nil
}

func firstWeather(ws []owWeather) owWeather {
	if len(ws) == 0 {
		return owWeather{}
	}
	return ws[0]
}

func (c *OpenWeatherClient) Current(ctx context.Context, location string) (*Conditions, error) {
	var out owCurrent
	if err := c.get(ctx, "/data/2.5/weather", location, &out); err != nil {
		return nil, err
	}
	w := firstWeather(out.Weather)
	name := out.Name
	if name == "" {
		name = location
	}
	return &Conditions{
		Location:    name,
		Temp:        out.Main.Temp,
		FeelsLike:   out.Main.FeelsLike,
		TempMin:     out.Main.TempMin,
		TempMax:     out.Main.TempMax,
		Humidity:    out.Main.Humidity,
		Pressure:    out.Main.Pressure,
		WindSpeed:   out.Wind.Speed,
		Description: w.Description,
		Icon:        w.Icon,
	}, nil
}

func (c *OpenWeatherClient) Forecast(ctx context.Context, location string) ([]ForecastEntry, error) {
	var out owForecast
	if err := c.get(ctx, "/data/2.5/forecast", location, &out); err != nil {
		return nil, err
	}
	entries := make([]ForecastEntry, 0, len(out.List))
	for _, item := range out.List {
		w := firstWeather(item.Weather)
		entries = append(entries, ForecastEntry{
			Time:        item.DtTxt,
			TempMin:     item.Main.TempMin,
			TempMax:     item.Main.TempMax,
			Humidity:    item.Main.Humidity,
			Description: w.Description,
			Icon:        w.Icon,
			Rain:        item.Rain.ThreeHours,
		})
	}
	return entries, nil
}

// DailyForecast keeps the first entry of each calendar day, in order.
func DailyForecast(entries []ForecastEntry) []ForecastEntry {
	seen := map[string]bool{}
	var days []ForecastEntry
	for _, e := range entries {
		date := e.Time
		if i := strings.IndexByte(date, ' '); i >= 0 {
			date = date[:i]
		}
		if date == "" || seen[date] {
			continue
		}
		seen[date] = true
		e.Time = date
		days = append(days, e)
	}
	return days
}
