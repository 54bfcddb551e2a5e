package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Shape identifies which provider layout a raw record was resolved from.
type Shape string

const (
	// ShapeWAQI records carry a WAQI station index (idx, or uid in map queries),
	// a nested city object and iaqi pollutant map.
	ShapeWAQI Shape = "WAQI"
	// ShapeGeneric records carry flat id/name/lat/lon/pollutant fields.
	ShapeGeneric Shape = "AQI.in"
)

// Source returns the source tag persisted with readings of this shape.
func (s Shape) Source() string {
	return string(s)
}

// Coord is an optional latitude/longitude pair as found in a geo array.
type Coord struct {
	Lat *float64
	Lon *float64
}

// RawRecord is one provider station record with every field the normalizers
// consult resolved to a typed value. Empty strings and nil pointers mean absent.
type RawRecord struct {
	Shape Shape

	// Identifiers.
	Idx       string
	UID       string
	ID        string
	StationID string
	Code      string

	// Naming.
	CityName          string // city.name
	City              string // city given as a plain string
	NestedStationName string // station.name
	Name              string
	StationName       string // station_name
	Area              string

	// Coordinates.
	CityGeo   Coord // city.geo
	Geo       Coord // top-level geo
	Lat       *float64
	Latitude  *float64
	Lon       *float64
	Longitude *float64

	// AQI is the aqi field when it is a JSON number.
	AQI *float64
	// DisplayAQI is aqi or AQI, accepting numeric strings.
	DisplayAQI *float64

	// Timestamps, verbatim.
	UpdatedAt      string
	UpdatedAtSnake string // updated_at
	LastUpdated    string // last_updated
	TimeISO        string // time.iso
	TimeS          string // time.s
	TimeTZ         string // time.tz
	StationTime    string // station.time

	// IAQI holds iaqi.<pollutant>.v values; Flat holds top-level pollutant fields.
	IAQI map[string]float64
	Flat map[string]float64
}

// ErrMalformedDocument marks a provider document that is not valid JSON of
// the expected form.
var ErrMalformedDocument = errors.New("malformed provider document")

// pollutantKeys are the top-level and iaqi field names that may carry a concentration.
var pollutantKeys = []string{"pm25", "pm2.5", "pm_25", "pm10", "pm_10", "no2", "so2", "o3", "co"}

// ExtractRecords decodes a provider document and resolves each station record.
// A top-level array is used as is; otherwise a data array, or a single data
// object wrapped in a one-element list. Any other shape yields no records.
func ExtractRecords(doc []byte) ([]RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: decode provider document: %w", ErrMalformedDocument, err)
	}

	items := recordList(v)
	records := make([]RawRecord, 0, len(items))
	for _, item := range items {
		records = append(records, resolveRecord(asObject(item)))
	}
	return records, nil
}

func recordList(v any) []any {
	switch doc := v.(type) {
	case []any:
		return doc
	case map[string]any:
		switch data := doc["data"].(type) {
		case []any:
			return data
		case map[string]any:
			return []any{data}
		}
	}
	return nil
}

func resolveRecord(item map[string]any) RawRecord {
	rec := RawRecord{
		Idx:       asString(item["idx"]),
		UID:       asString(item["uid"]),
		ID:        asString(item["id"]),
		StationID: asString(item["station_id"]),
		Code:      asString(item["code"]),

		Name:        asString(item["name"]),
		StationName: asString(item["station_name"]),
		Area:        asString(item["area"]),

		Geo:       asCoord(item["geo"]),
		Lat:       asNumber(item["lat"]),
		Latitude:  asNumber(item["latitude"]),
		Lon:       asNumber(item["lon"]),
		Longitude: asNumber(item["longitude"]),

		UpdatedAt:      asString(item["updatedAt"]),
		UpdatedAtSnake: asString(item["updated_at"]),
		LastUpdated:    asString(item["last_updated"]),
	}

	if rec.Idx != "" || rec.UID != "" {
		rec.Shape = ShapeWAQI
	} else {
		rec.Shape = ShapeGeneric
	}

	switch city := item["city"].(type) {
	case map[string]any:
		rec.CityName = asString(city["name"])
		rec.CityGeo = asCoord(city["geo"])
	case string:
		rec.City = city
	}

	if station := asObject(item["station"]); station != nil {
		rec.NestedStationName = asString(station["name"])
		rec.StationTime = asString(station["time"])
	}

	if t := asObject(item["time"]); t != nil {
		rec.TimeISO = asString(t["iso"])
		rec.TimeS = asString(t["s"])
		rec.TimeTZ = asString(t["tz"])
	}

	if n, ok := item["aqi"].(json.Number); ok {
		rec.AQI = numberValue(n)
	}
	rec.DisplayAQI = asNumber(item["aqi"])
	if rec.DisplayAQI == nil {
		rec.DisplayAQI = asNumber(item["AQI"])
	}

	iaqi := asObject(item["iaqi"])
	for _, key := range pollutantKeys {
		if v := asNumber(item[key]); v != nil {
			if rec.Flat == nil {
				rec.Flat = make(map[string]float64)
			}
			rec.Flat[key] = *v
		}
		if entry := asObject(iaqi[key]); entry != nil {
			if v := asNumber(entry["v"]); v != nil {
				if rec.IAQI == nil {
					rec.IAQI = make(map[string]float64)
				}
				rec.IAQI[key] = *v
			}
		}
	}

	return rec
}

// pollutant returns the first value found among the iaqi keys, then the flat keys.
func (r RawRecord) pollutant(iaqiKeys, flatKeys []string) *float64 {
	for _, k := range iaqiKeys {
		if v, ok := r.IAQI[k]; ok {
			return &v
		}
	}
	for _, k := range flatKeys {
		if v, ok := r.Flat[k]; ok {
			return &v
		}
	}
	return nil
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asString renders strings and numbers; other values are treated as absent.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return numberString(t)
	}
	return ""
}

// numberString renders a JSON number in its shortest decimal form, so 1.0
// and 1 name the same identifier.
func numberString(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil && !math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}

// asNumber accepts JSON numbers and numeric strings. Non-finite values are absent.
func asNumber(v any) *float64 {
	switch t := v.(type) {
	case json.Number:
		return numberValue(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	}
	return nil
}

func numberValue(n json.Number) *float64 {
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func asCoord(v any) Coord {
	arr, ok := v.([]any)
	if !ok {
		return Coord{}
	}
	var c Coord
	if len(arr) > 0 {
		c.Lat = asNumber(arr[0])
	}
	if len(arr) > 1 {
		c.Lon = asNumber(arr[1])
	}
	return c
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
