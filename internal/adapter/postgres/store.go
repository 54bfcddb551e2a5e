// Package postgres implements the upsert gateway and correlation read queries on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects to PostgreSQL and verifies the connection.
func New(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const upsertStationSQL = `INSERT INTO stations (external_id, name, latitude, longitude, region)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (external_id) DO UPDATE
SET name = EXCLUDED.name,
    latitude = EXCLUDED.latitude,
    longitude = EXCLUDED.longitude,
    region = EXCLUDED.region,
    updated_at = NOW()
RETURNING id, external_id`

// UpsertStations inserts or updates stations keyed by external_id in one
// transaction and returns the store id of every inserted or matched row.
func (s *Store) UpsertStations(ctx context.Context, stations []domain.Station) (map[string]int64, error) {
	ids := make(map[string]int64, len(stations))
	if len(stations) == 0 {
		return ids, nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, st := range stations {
			batch.Queue(upsertStationSQL, st.ExternalID, st.Name, st.Latitude, st.Longitude, st.Region)
		}

		res := tx.SendBatch(ctx, batch)
		defer res.Close()

		for range stations {
			var id int64
			var externalID string
			if err := res.QueryRow().Scan(&id, &externalID); err != nil {
				return err
			}
			ids[externalID] = id
		}
		return res.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("upsert stations: %w", err)
	}
	return ids, nil
}

const insertReadingSQL = `INSERT INTO aqi_readings (station_id, observed_at, aqi, pm25, pm10, no2, so2, o3, co, source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (station_id, observed_at, source) DO NOTHING`

// InsertReadings appends readings; rows already present are skipped.
func (s *Store) InsertReadings(ctx context.Context, readings []domain.Reading) (domain.WriteResult, error) {
	batch := &pgx.Batch{}
	for _, r := range readings {
		batch.Queue(insertReadingSQL, r.StationID, r.ObservedAt, r.AQI, r.PM25, r.PM10, r.NO2, r.SO2, r.O3, r.CO, r.Source)
	}
	result, err := s.execBatch(ctx, batch)
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("insert aqi_readings: %w", err)
	}
	return result, nil
}

const insertHotspotSQL = `INSERT INTO fire_hotspots (source_id, latitude, longitude, detected_at, confidence, frp)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (detected_at, latitude, longitude) DO NOTHING`

// InsertHotspots appends fire points; rows already present are skipped.
func (s *Store) InsertHotspots(ctx context.Context, points []domain.FirePoint) (domain.WriteResult, error) {
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(insertHotspotSQL, p.SourceID, p.Latitude, p.Longitude, p.DetectedAt, p.Confidence, p.FRP)
	}
	result, err := s.execBatch(ctx, batch)
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("insert fire_hotspots: %w", err)
	}
	return result, nil
}

const insertWeatherSQL = `INSERT INTO weather_snapshots (observed_at, latitude, longitude, temperature_c, humidity_pct, pressure_hpa, wind_speed_ms, wind_dir_deg, source)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (observed_at, latitude, longitude, source) DO NOTHING`

// InsertWeather appends weather snapshots; rows already present are skipped.
func (s *Store) InsertWeather(ctx context.Context, snapshots []domain.WeatherSnapshot) (domain.WriteResult, error) {
	batch := &pgx.Batch{}
	for _, w := range snapshots {
		batch.Queue(insertWeatherSQL, w.ObservedAt, w.Latitude, w.Longitude, w.TemperatureC, w.HumidityPct, w.PressureHpa, w.WindSpeedMs, w.WindDirDeg, w.Source)
	}
	result, err := s.execBatch(ctx, batch)
	if err != nil {
		return domain.WriteResult{}, fmt.Errorf("insert weather_snapshots: %w", err)
	}
	return result, nil
}

// execBatch runs every queued statement in one transaction. An empty batch writes nothing.
func (s *Store) execBatch(ctx context.Context, batch *pgx.Batch) (domain.WriteResult, error) {
	var result domain.WriteResult
	if batch.Len() == 0 {
		return result, nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		res := tx.SendBatch(ctx, batch)
		defer res.Close()

		for i := 0; i < batch.Len(); i++ {
			tag, err := res.Exec()
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 0 {
				result.Skipped++
			} else {
				result.Written++
			}
		}
		return res.Close()
	})
	if err != nil {
		return domain.WriteResult{}, err
	}
	return result, nil
}

// PM25Series returns non-null PM2.5 readings observed in [start, end), oldest first.
func (s *Store) PM25Series(ctx context.Context, start, end time.Time, limit int) ([]domain.Observation, error) {
	rows, err := s.pool.Query(ctx, `
SELECT observed_at, pm25
FROM aqi_readings
WHERE pm25 IS NOT NULL AND observed_at >= $1 AND observed_at < $2
ORDER BY observed_at
LIMIT $3`, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("query aqi_readings: %w", err)
	}

	series, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Observation, error) {
		var o domain.Observation
		err := row.Scan(&o.At, &o.Value)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan aqi_readings: %w", err)
	}
	return series, nil
}

// HotspotTimes returns detection times in [start, end), oldest first.
func (s *Store) HotspotTimes(ctx context.Context, start, end time.Time, limit int) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx, `
SELECT detected_at
FROM fire_hotspots
WHERE detected_at >= $1 AND detected_at < $2
ORDER BY detected_at
LIMIT $3`, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("query fire_hotspots: %w", err)
	}

	times, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("scan fire_hotspots: %w", err)
	}
	return times, nil
}
