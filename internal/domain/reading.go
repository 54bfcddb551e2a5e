package domain

import (
	"math"
	"time"
)

// zonelessLayouts are tried in the record's time.tz offset (UTC when absent).
var zonelessLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// NormalizeReadings maps raw records to readings for stations present in
// stationIDs (external id to store id). Records without a resolvable station
// are dropped, as are records whose timestamp is present but unparseable and
// records whose AQI is out of integer range.
// At most one reading per station is kept; the last value wins.
func NormalizeReadings(records []RawRecord, stationIDs map[string]int64) ([]Reading, DropCounts) {
	drops := make(DropCounts)

	var readings []Reading
	index := make(map[int64]int)

	for _, r := range records {
		externalID := ExternalID(r)
		stationID, ok := stationIDs[externalID]
		if externalID == "" || !ok {
			drops.Add(DropUnresolvedStation)
			continue
		}

		at, ok := observedAt(r)
		if !ok {
			drops.Add(DropInvalidTimestamp)
			continue
		}

		pm25 := r.pollutant([]string{"pm25", "pm2.5"}, []string{"pm25", "pm_25"})
		aqi, ok := readingAQI(r.AQI, pm25)
		if !ok {
			drops.Add(DropAQIOutOfRange)
			continue
		}
		reading := Reading{
			StationID:         stationID,
			StationExternalID: externalID,
			ObservedAt:        at,
			AQI:               aqi,
			PM25:              pm25,
			PM10:              r.pollutant([]string{"pm10"}, []string{"pm10", "pm_10"}),
			NO2:               r.pollutant([]string{"no2"}, []string{"no2"}),
			SO2:               r.pollutant([]string{"so2"}, []string{"so2"}),
			O3:                r.pollutant([]string{"o3"}, []string{"o3"}),
			CO:                r.pollutant([]string{"co"}, []string{"co"}),
			Source:            r.Shape.Source(),
		}

		if i, seen := index[stationID]; seen {
			readings[i] = reading
			drops.Add(DropDuplicate)
			continue
		}
		index[stationID] = len(readings)
		readings = append(readings, reading)
	}

	return readings, drops
}

// observedAt walks the timestamp fallback chain. Ingestion time is used only
// when no candidate field is present.
func observedAt(r RawRecord) (time.Time, bool) {
	raw := firstString(r.UpdatedAt, r.UpdatedAtSnake, r.LastUpdated, r.TimeISO, r.TimeS)
	if raw == "" {
		return clock.Now().UTC(), true
	}
	return parseTimestamp(raw, r.TimeTZ)
}

// readingAQI prefers the provider composite and falls back to round(PM2.5).
// It reports false when the rounded value does not fit a 32-bit integer column.
func readingAQI(aqi, pm25 *float64) (*int, bool) {
	var v float64
	switch {
	case aqi != nil:
		v = *aqi
	case pm25 != nil:
		v = *pm25
	default:
		return nil, true
	}
	v = math.Round(v)
	if v > math.MaxInt32 || v < math.MinInt32 {
		return nil, false
	}
	n := int(v)
	return &n, true
}

// parseTimestamp accepts RFC 3339 and common zoneless layouts. Zoneless values
// are read in the tz offset ("+05:30") when given, else UTC.
func parseTimestamp(s, tz string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}

	loc := time.UTC
	if offset, ok := parseOffset(tz); ok {
		loc = offset
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseOffset(tz string) (*time.Location, bool) {
	if tz == "" {
		return nil, false
	}
	for _, layout := range []string{"-07:00", "-0700", "Z07:00"} {
		if t, err := time.Parse(layout, tz); err == nil {
			_, offset := t.Zone()
			return time.FixedZone(tz, offset), true
		}
	}
	return nil, false
}
