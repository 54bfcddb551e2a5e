package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/air-quality-etl/internal/config"
)

// kmhPerMs converts wind speed from km/h to m/s.
const kmhPerMs = 3.6

// WeatherResponse is the subset of an Open-Meteo forecast response the mapper reads.
type WeatherResponse struct {
	UTCOffsetSeconds int          `json:"utc_offset_seconds"`
	Hourly           HourlySeries `json:"hourly"`
}

// HourlySeries holds parallel hourly arrays indexed by Time. Elements may be null.
type HourlySeries struct {
	Time               []string   `json:"time"`
	Temperature2m      []*float64 `json:"temperature_2m"`
	RelativeHumidity2m []*float64 `json:"relative_humidity_2m"`
	SurfacePressure    []*float64 `json:"surface_pressure"`
	WindSpeed10m       []*float64 `json:"wind_speed_10m"`
	WindDirection10m   []*float64 `json:"wind_direction_10m"`
}

// HourlyVariables lists the hourly fields requested from Open-Meteo.
var HourlyVariables = []string{
	"temperature_2m",
	"relative_humidity_2m",
	"surface_pressure",
	"wind_speed_10m",
	"wind_direction_10m",
}

// DecodeWeather parses an Open-Meteo forecast document.
func DecodeWeather(body []byte) (WeatherResponse, error) {
	var resp WeatherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return WeatherResponse{}, fmt.Errorf("%w: decode forecast document: %w", ErrMalformedDocument, err)
	}
	return resp, nil
}

// MapWeather produces one snapshot per entry of the time array at the
// reference point. Value arrays shorter than the time array yield nulls.
// Local times are read in the response's UTC offset.
func MapWeather(resp WeatherResponse, defaults config.Defaults) ([]WeatherSnapshot, DropCounts) {
	drops := make(DropCounts)
	loc := time.FixedZone("", resp.UTCOffsetSeconds)
	h := resp.Hourly

	snapshots := make([]WeatherSnapshot, 0, len(h.Time))
	for i, raw := range h.Time {
		observed, ok := parseLocalTime(raw, loc)
		if !ok {
			drops.Add(DropInvalidTimestamp)
			continue
		}

		s := WeatherSnapshot{
			ObservedAt:   observed,
			Latitude:     defaults.ReferenceLat,
			Longitude:    defaults.ReferenceLon,
			TemperatureC: valueAt(h.Temperature2m, i),
			HumidityPct:  valueAt(h.RelativeHumidity2m, i),
			PressureHpa:  valueAt(h.SurfacePressure, i),
			WindDirDeg:   valueAt(h.WindDirection10m, i),
			Source:       SourceOpenMeteo,
		}
		if kmh := valueAt(h.WindSpeed10m, i); kmh != nil {
			ms := *kmh / kmhPerMs
			s.WindSpeedMs = &ms
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, drops
}

func valueAt(values []*float64, i int) *float64 {
	if i >= len(values) || values[i] == nil {
		return nil
	}
	v := *values[i]
	return &v
}

func parseLocalTime(s string, loc *time.Location) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
