package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// detectedAtLayout matches the composed FIRMS acquisition timestamp, e.g. "2024-01-03T0815Z".
const detectedAtLayout = "2006-01-02T1504Z"

// FormatDetectedAt renders t in the FIRMS acquisition form, e.g. "2024-01-03T0815Z".
func FormatDetectedAt(t time.Time) string {
	return t.UTC().Format(detectedAtLayout)
}

// ParseHotspots parses a FIRMS area/country CSV export into fire points.
// The first non-blank line is the header; each data line is zipped with it
// positionally and the shorter side truncates. Rows without a finite
// latitude and longitude are dropped and counted.
func ParseHotspots(text string) ([]FirePoint, DropCounts) {
	drops := make(DropCounts)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return nil, drops
	}

	headers := splitColumns(lines[0])
	points := make([]FirePoint, 0, len(lines)-1)

	for _, line := range lines[1:] {
		cols := splitColumns(line)
		row := make(map[string]string, len(headers))
		for i := 0; i < len(headers) && i < len(cols); i++ {
			row[headers[i]] = cols[i]
		}

		p, ok := hotspotFromRow(row)
		if !ok {
			drops.Add(DropInvalidCoordinates)
			continue
		}
		points = append(points, p)
	}

	return points, drops
}

func splitColumns(line string) []string {
	cols := strings.Split(line, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func hotspotFromRow(row map[string]string) (FirePoint, bool) {
	rawLat := firstField(row, "latitude", "lat")
	rawLon := firstField(row, "longitude", "lon")
	lat, okLat := parseFinite(rawLat)
	lon, okLon := parseFinite(rawLon)
	if !okLat || !okLon {
		return FirePoint{}, false
	}

	p := FirePoint{
		Latitude:   lat,
		Longitude:  lon,
		DetectedAt: detectedAt(row["acq_date"], row["acq_time"]),
	}
	if c := row["confidence"]; c != "" {
		p.Confidence = &c
	}
	if frp, ok := parseFinite(row["frp"]); ok {
		p.FRP = &frp
	}
	if b := row["bright_ti4"]; b != "" {
		id := fmt.Sprintf("firms:%s:%s:%s", b, rawLat, rawLon)
		p.SourceID = &id
	}
	return p, true
}

// detectedAt combines the acquisition date and HHMM time in UTC, falling back
// to ingestion time when either part is missing or malformed.
func detectedAt(date, hhmm string) time.Time {
	composed, ok := composeDetectedAt(date, hhmm)
	if !ok {
		return clock.Now().UTC()
	}
	t, err := time.Parse(detectedAtLayout, composed)
	if err != nil {
		return clock.Now().UTC()
	}
	return t
}

// composeDetectedAt builds "{date}T{HHMM}Z", left-padding the time to four digits.
func composeDetectedAt(date, hhmm string) (string, bool) {
	if date == "" || hhmm == "" {
		return "", false
	}
	if len(hhmm) < 4 {
		hhmm = strings.Repeat("0", 4-len(hhmm)) + hhmm
	}
	return date + "T" + hhmm + "Z", true
}

func firstField(row map[string]string, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			return v
		}
	}
	return ""
}

func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
