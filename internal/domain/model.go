package domain

import "time"

// Provider and source tags persisted with each record.
const (
	SourceWAQI      = "WAQI"
	SourceAQIIn     = "AQI.in"
	SourceFIRMS     = "FIRMS"
	SourceOpenMeteo = "Open-Meteo"
)

// Station is a monitoring site keyed by a provider-derived external identifier.
type Station struct {
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Region     string  `json:"region"`
}

// Reading is one air-quality observation at a station.
type Reading struct {
	StationID         int64     `json:"station_id"`
	StationExternalID string    `json:"station_external_id"`
	ObservedAt        time.Time `json:"observed_at"`
	AQI               *int      `json:"aqi"`
	PM25              *float64  `json:"pm25"`
	PM10              *float64  `json:"pm10"`
	NO2               *float64  `json:"no2"`
	SO2               *float64  `json:"so2"`
	O3                *float64  `json:"o3"`
	CO                *float64  `json:"co"`
	Source            string    `json:"source"`
}

// FirePoint is one satellite thermal-anomaly detection.
type FirePoint struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	DetectedAt time.Time `json:"detectedAt"`
	Confidence *string   `json:"confidence"`
	FRP        *float64  `json:"frp"`
	// SourceID is a de-duplication hint only; it is not unique.
	SourceID *string `json:"sourceId,omitempty"`
}

// WeatherSnapshot is one hourly weather observation at the reference point.
type WeatherSnapshot struct {
	ObservedAt   time.Time `json:"observed_at"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	TemperatureC *float64  `json:"temperature_c"`
	HumidityPct  *float64  `json:"humidity_pct"`
	PressureHpa  *float64  `json:"pressure_hpa"`
	WindSpeedMs  *float64  `json:"wind_speed_ms"`
	WindDirDeg   *float64  `json:"wind_dir_deg"`
	Source       string    `json:"source"`
}

// CorrelationPoint pairs the primary metric for one UTC day with the event
// count of the lag-shifted day.
type CorrelationPoint struct {
	Date          time.Time `json:"date"`
	PrimaryMetric float64   `json:"primaryMetric"`
	EventCount    int       `json:"eventCount"`
}

// DropReason names why a record was discarded during normalization.
type DropReason string

const (
	DropMissingID          DropReason = "missing_id"
	DropMissingCoordinates DropReason = "missing_coordinates"
	DropDuplicate          DropReason = "duplicate"
	DropUnresolvedStation  DropReason = "unresolved_station"
	DropInvalidTimestamp   DropReason = "invalid_timestamp"
	DropInvalidCoordinates DropReason = "invalid_coordinates"
	DropAQIOutOfRange      DropReason = "aqi_out_of_range"
)

// DropCounts tallies discarded records by reason.
type DropCounts map[DropReason]int

// Add increments the count for reason.
func (d DropCounts) Add(reason DropReason) {
	d[reason]++
}

// Merge adds every count in other to d.
func (d DropCounts) Merge(other DropCounts) {
	for reason, n := range other {
		d[reason] += n
	}
}

// Total returns the number of dropped records across all reasons.
func (d DropCounts) Total() int {
	total := 0
	for _, n := range d {
		total += n
	}
	return total
}

// WriteResult counts rows inserted and rows skipped as already present.
type WriteResult struct {
	Written int
	Skipped int
}
