// Package domain models air-quality, fire and weather observations and the
// pure functions that reduce provider payloads to them.
//
// # Data Sources
//
// Air quality comes from a configured AQI provider endpoint. Two document
// layouts are seen in practice and both are resolved by [ExtractRecords]:
//
//	AQI.in style:  {"data": [{"id": "...", "lat": 28.6, "lon": 77.3, "pm25": 180, ...}]}
//	WAQI feed:     {"status": "ok", "data": {"idx": 1234, "city": {"geo": [28.6, 77.3]}, "iaqi": {"pm25": {"v": 152}}}}
//	WAQI bounds:   {"status": "ok", "data": [{"uid": 1234, "lat": 28.6, "lon": 77.3, "aqi": "152"}]}
//
// A bare top-level array is also accepted. Anything else yields no records.
//
// Fire detections come from NASA FIRMS country CSV exports (VIIRS 375 m NRT):
//
//	latitude,longitude,bright_ti4,scan,track,acq_date,acq_time,satellite,instrument,confidence,version,bright_ti5,frp,daynight
//	28.61,77.20,330.5,0.39,0.36,2024-01-03,815,N,VIIRS,n,2.0NRT,290.1,12.3,D
//
// acq_time is HHMM in UTC without leading zeros ("815" is 08:15). It is
// zero-padded and combined with acq_date into "2024-01-03T0815Z".
// confidence is kept verbatim: VIIRS reports "l", "n" or "h", MODIS a percentage.
//
// Weather comes from the Open-Meteo forecast API as parallel hourly arrays
// for a single reference point. Times are local to utc_offset_seconds.
//
// # Identity
//
// Stations are keyed by an external id: "waqi:<idx>" for WAQI records, else
// the provider's own id/station_id/code. Readings, fire points and weather
// snapshots are append-only; the store de-duplicates them on natural keys.
//
// # Dropped Records
//
// Records that cannot be normalized are discarded, never propagated as
// errors. Each normalizer returns a [DropCounts] tally by [DropReason] so the
// caller can report it as run metadata.
//
// # Correlation
//
// [Correlate] buckets a primary series (PM2.5) by UTC day as a mean and an
// event series (fire detections) by UTC day as a count, then pairs each day's
// mean with the count lag days earlier. Days without a primary value are
// skipped rather than zero-filled.
package domain
