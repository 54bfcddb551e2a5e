package domain

import "strings"

// AQICategory is a CPCB National AQI band.
type AQICategory string

const (
	CategoryGood         AQICategory = "Good"
	CategorySatisfactory AQICategory = "Satisfactory"
	CategoryModerate     AQICategory = "Moderate"
	CategoryPoor         AQICategory = "Poor"
	CategoryVeryPoor     AQICategory = "Very Poor"
	CategorySevere       AQICategory = "Severe"
)

// CategorizeAQI maps an AQI value to its NAQI band.
func CategorizeAQI(aqi float64) AQICategory {
	switch {
	case aqi <= 50:
		return CategoryGood
	case aqi <= 100:
		return CategorySatisfactory
	case aqi <= 200:
		return CategoryModerate
	case aqi <= 300:
		return CategoryPoor
	case aqi <= 400:
		return CategoryVeryPoor
	default:
		return CategorySevere
	}
}

// LiveStation is the presentation form of a station returned by the live list endpoint.
type LiveStation struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Lat       float64     `json:"lat"`
	Lon       float64     `json:"lon"`
	AQI       *float64    `json:"aqi"`
	Category  AQICategory `json:"category,omitempty"`
	UpdatedAt *string     `json:"updatedAt"`
	Region    *string     `json:"region"`
}

// NormalizeLiveStations maps raw records to live stations. Unlike ingestion it
// keys by the raw provider uid and prefers flat coordinates over geo arrays.
// Records lacking a uid or either coordinate are dropped.
func NormalizeLiveStations(records []RawRecord) ([]LiveStation, DropCounts) {
	drops := make(DropCounts)
	stations := make([]LiveStation, 0, len(records))

	for _, r := range records {
		uid := firstString(r.UID, r.Idx, r.ID, r.StationID, r.Code)
		if uid == "" {
			drops.Add(DropMissingID)
			continue
		}

		lat := firstNumber(r.Lat, r.Latitude, r.Geo.Lat, r.CityGeo.Lat)
		lon := firstNumber(r.Lon, r.Longitude, r.Geo.Lon, r.CityGeo.Lon)
		if lat == nil || lon == nil {
			drops.Add(DropMissingCoordinates)
			continue
		}

		name := firstString(r.NestedStationName, r.CityName, r.Name, r.StationName)
		if name == "" {
			name = "Station " + uid
		}

		s := LiveStation{
			ID:        uid,
			Name:      name,
			Lat:       *lat,
			Lon:       *lon,
			AQI:       r.DisplayAQI,
			UpdatedAt: optionalString(firstString(r.TimeISO, r.TimeS, r.UpdatedAt, r.UpdatedAtSnake, r.StationTime)),
			Region:    liveRegion(r, name),
		}
		if s.AQI != nil {
			s.Category = CategorizeAQI(*s.AQI)
		}
		stations = append(stations, s)
	}

	return stations, drops
}

func liveRegion(r RawRecord, name string) *string {
	switch {
	case r.Area != "":
		return optionalString(r.Area)
	case strings.Contains(name, "Delhi"):
		return optionalString("Delhi")
	default:
		return optionalString(r.City)
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
