package provider

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
)

const providerOpenMeteo = "open_meteo"

// WeatherClient fetches hourly forecasts for the reference point from Open-Meteo.
type WeatherClient struct {
	transport
	baseURL string
	lat     float64
	lon     float64
}

// NewWeatherClient creates an Open-Meteo client from configuration.
func NewWeatherClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *WeatherClient {
	return &WeatherClient{
		transport: newTransport(cfg.RequestTimeout, metrics, logger),
		baseURL:   strings.TrimRight(cfg.WeatherBaseURL, "/"),
		lat:       cfg.Defaults.ReferenceLat,
		lon:       cfg.Defaults.ReferenceLon,
	}
}

// FetchDocument returns the raw forecast JSON covering the past and current day.
func (c *WeatherClient) FetchDocument(ctx context.Context) ([]byte, error) {
	params := url.Values{
		"latitude":      {strconv.FormatFloat(c.lat, 'f', -1, 64)},
		"longitude":     {strconv.FormatFloat(c.lon, 'f', -1, 64)},
		"hourly":        {strings.Join(domain.HourlyVariables, ",")},
		"past_days":     {"1"},
		"forecast_days": {"1"},
		"timezone":      {"auto"},
	}
	return c.get(ctx, providerOpenMeteo, c.baseURL+"/v1/forecast?"+params.Encode(), acceptJSON())
}
