package domain

import (
	"strings"

	"github.com/couchcryptid/air-quality-etl/internal/config"
)

const waqiPrefix = "waqi:"

// ExternalID returns the stable upsert key for a raw record: the WAQI station
// index prefixed with "waqi:", else the first generic id/station_id/code.
// An empty result means the record cannot be keyed.
func ExternalID(r RawRecord) string {
	if idx := firstString(r.Idx, r.UID); idx != "" {
		return waqiPrefix + idx
	}
	return firstString(r.ID, r.StationID, r.Code)
}

// NormalizeStations maps raw records to stations, collapses them by external
// id (last value wins, first position kept) and then discards stations
// missing either coordinate.
func NormalizeStations(records []RawRecord, defaults config.Defaults) ([]Station, DropCounts) {
	drops := make(DropCounts)

	type candidate struct {
		station   Station
		hasCoords bool
	}

	var candidates []candidate
	index := make(map[string]int)

	for _, r := range records {
		externalID := ExternalID(r)
		if externalID == "" {
			drops.Add(DropMissingID)
			continue
		}

		name := stationName(r)
		lat := firstNumber(r.CityGeo.Lat, r.Lat, r.Latitude)
		lon := firstNumber(r.CityGeo.Lon, r.Lon, r.Longitude)

		c := candidate{
			station: Station{
				ExternalID: externalID,
				Name:       name,
				Region:     stationRegion(r, name, defaults.Region),
			},
			hasCoords: lat != nil && lon != nil,
		}
		if c.hasCoords {
			c.station.Latitude = *lat
			c.station.Longitude = *lon
		}

		if i, ok := index[externalID]; ok {
			candidates[i] = c
			drops.Add(DropDuplicate)
			continue
		}
		index[externalID] = len(candidates)
		candidates = append(candidates, c)
	}

	stations := make([]Station, 0, len(candidates))
	for _, c := range candidates {
		if !c.hasCoords {
			drops.Add(DropMissingCoordinates)
			continue
		}
		stations = append(stations, c.station)
	}
	return stations, drops
}

func stationName(r RawRecord) string {
	if name := firstString(r.CityName, r.Name, r.StationName); name != "" {
		return name
	}
	if id := firstString(r.Idx, r.UID, r.ID, r.StationID, r.Code); id != "" {
		return "Station " + id
	}
	return "Unnamed station"
}

func stationRegion(r RawRecord, name, fallback string) string {
	if r.Area != "" {
		return r.Area
	}
	if strings.Contains(name, "Delhi") {
		return "Delhi"
	}
	if r.City != "" {
		return r.City
	}
	return fallback
}
