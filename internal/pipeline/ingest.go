// Package pipeline orchestrates ingestion runs (fetch, normalize, write,
// publish) and correlation queries over the stored series.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
)

// Run sources, used as metric labels and in run metadata.
const (
	SourceAQI     = "aqi"
	SourceFires   = "fires"
	SourceWeather = "weather"
)

// Source yields one raw upstream payload per call.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]byte, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) ([]byte, error) {
	return f(ctx)
}

// FileSource reads a previously saved payload from disk.
type FileSource string

// Fetch reads the file.
func (f FileSource) Fetch(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(string(f))
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", string(f), err)
	}
	return data, nil
}

// Gateway persists canonical records. Every call is one atomic batch.
type Gateway interface {
	UpsertStations(ctx context.Context, stations []domain.Station) (map[string]int64, error)
	InsertReadings(ctx context.Context, readings []domain.Reading) (domain.WriteResult, error)
	InsertHotspots(ctx context.Context, points []domain.FirePoint) (domain.WriteResult, error)
	InsertWeather(ctx context.Context, snapshots []domain.WeatherSnapshot) (domain.WriteResult, error)
}

// Publisher announces committed records downstream.
type Publisher interface {
	PublishReadings(ctx context.Context, runID string, readings []domain.Reading) error
	PublishHotspots(ctx context.Context, runID string, points []domain.FirePoint) error
	PublishWeather(ctx context.Context, runID string, snapshots []domain.WeatherSnapshot) error
}

// RunResult is the metadata of one ingestion run.
type RunResult struct {
	RunID      uuid.UUID
	Source     string
	DryRun     bool
	Fetched    int
	Normalized int
	Written    int
	Skipped    int
	Drops      domain.DropCounts
	Duration   time.Duration
}

// Ingestor executes one-shot ingestion runs against a Gateway.
type Ingestor struct {
	gateway   Gateway
	publisher Publisher
	defaults  config.Defaults
	logger    *slog.Logger
	metrics   *observability.Metrics
	dryRun    bool
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithPublisher publishes committed records after each successful write.
func WithPublisher(p Publisher) Option {
	return func(i *Ingestor) { i.publisher = p }
}

// WithDryRun normalizes without writing or publishing.
func WithDryRun() Option {
	return func(i *Ingestor) { i.dryRun = true }
}

// NewIngestor creates an Ingestor. The gateway may be nil for dry runs.
func NewIngestor(gateway Gateway, defaults config.Defaults, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Ingestor {
	i := &Ingestor{
		gateway:  gateway,
		defaults: defaults,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// RunAQI fetches the AQI provider document, upserts its stations and inserts
// one reading per resolved station.
func (i *Ingestor) RunAQI(ctx context.Context, src Source) (RunResult, error) {
	return i.run(ctx, SourceAQI, func(res *RunResult) error {
		doc, err := src.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch aqi document: %w", err)
		}
		records, err := domain.ExtractRecords(doc)
		if err != nil {
			return err
		}
		res.Fetched = len(records)

		stations, drops := domain.NormalizeStations(records, i.defaults)
		res.Drops.Merge(drops)
		if len(stations) == 0 {
			i.logger.Warn("no valid stations in provider document", "run_id", res.RunID, "records", len(records))
			return nil
		}

		ids, err := i.upsertStations(ctx, stations)
		if err != nil {
			return err
		}
		i.logger.Info("stations upserted", "run_id", res.RunID, "count", len(ids))

		readings, drops := domain.NormalizeReadings(records, ids)
		res.Drops.Merge(drops)
		res.Normalized = len(readings)
		if len(readings) == 0 {
			i.logger.Warn("no readings to insert", "run_id", res.RunID)
			return nil
		}
		if i.dryRun {
			return nil
		}

		wr, err := i.gateway.InsertReadings(ctx, readings)
		if err != nil {
			return err
		}
		res.Written, res.Skipped = wr.Written, wr.Skipped

		if i.publisher != nil {
			i.published(res, len(readings), i.publisher.PublishReadings(ctx, res.RunID.String(), readings))
		}
		return nil
	})
}

// RunFires fetches the FIRMS CSV and inserts the parsed fire points.
func (i *Ingestor) RunFires(ctx context.Context, src Source) (RunResult, error) {
	return i.run(ctx, SourceFires, func(res *RunResult) error {
		body, err := src.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch firms csv: %w", err)
		}
		points, drops := domain.ParseHotspots(string(body))
		res.Drops.Merge(drops)
		res.Fetched = len(points) + drops.Total()
		res.Normalized = len(points)
		if len(points) == 0 {
			i.logger.Warn("no fire points to insert", "run_id", res.RunID)
			return nil
		}
		if i.dryRun {
			return nil
		}

		wr, err := i.gateway.InsertHotspots(ctx, points)
		if err != nil {
			return err
		}
		res.Written, res.Skipped = wr.Written, wr.Skipped

		if i.publisher != nil {
			i.published(res, len(points), i.publisher.PublishHotspots(ctx, res.RunID.String(), points))
		}
		return nil
	})
}

// RunWeather fetches the Open-Meteo hourly forecast and inserts one snapshot per hour.
func (i *Ingestor) RunWeather(ctx context.Context, src Source) (RunResult, error) {
	return i.run(ctx, SourceWeather, func(res *RunResult) error {
		body, err := src.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch weather forecast: %w", err)
		}
		resp, err := domain.DecodeWeather(body)
		if err != nil {
			return err
		}
		res.Fetched = len(resp.Hourly.Time)

		snapshots, drops := domain.MapWeather(resp, i.defaults)
		res.Drops.Merge(drops)
		res.Normalized = len(snapshots)
		if len(snapshots) == 0 {
			i.logger.Warn("no weather snapshots to insert", "run_id", res.RunID)
			return nil
		}
		if i.dryRun {
			return nil
		}

		wr, err := i.gateway.InsertWeather(ctx, snapshots)
		if err != nil {
			return err
		}
		res.Written, res.Skipped = wr.Written, wr.Skipped

		if i.publisher != nil {
			i.published(res, len(snapshots), i.publisher.PublishWeather(ctx, res.RunID.String(), snapshots))
		}
		return nil
	})
}

// run wraps one ingestion body with run metadata, logging and metrics.
func (i *Ingestor) run(ctx context.Context, source string, body func(*RunResult) error) (RunResult, error) {
	start := time.Now()
	res := RunResult{
		RunID:  uuid.New(),
		Source: source,
		DryRun: i.dryRun,
		Drops:  domain.DropCounts{},
	}

	if !i.dryRun && i.gateway == nil {
		return res, errors.New("ingestor has no gateway")
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	i.logger.Info("run started", "run_id", res.RunID, "source", source, "dry_run", i.dryRun)
	err := body(&res)
	res.Duration = time.Since(start)
	i.record(res, err)

	if err != nil {
		i.logger.Error("run failed", "run_id", res.RunID, "source", source, "error", err)
		return res, fmt.Errorf("%s run %s: %w", source, res.RunID, err)
	}

	i.logger.Info("run finished",
		"run_id", res.RunID,
		"source", source,
		"dry_run", res.DryRun,
		"fetched", res.Fetched,
		"normalized", res.Normalized,
		"written", res.Written,
		"skipped", res.Skipped,
		"dropped", res.Drops.Total(),
		"duration", res.Duration,
	)
	return res, nil
}

// upsertStations writes stations, or assigns provisional ids in dry-run mode
// so readings can still be normalized and counted.
func (i *Ingestor) upsertStations(ctx context.Context, stations []domain.Station) (map[string]int64, error) {
	if !i.dryRun {
		return i.gateway.UpsertStations(ctx, stations)
	}
	ids := make(map[string]int64, len(stations))
	for n, s := range stations {
		ids[s.ExternalID] = int64(n + 1)
	}
	return ids, nil
}

// published logs a publish failure; the records are already committed, so the run still succeeds.
func (i *Ingestor) published(res *RunResult, count int, err error) {
	if err != nil {
		i.logger.Error("publish committed records failed", "run_id", res.RunID, "source", res.Source, "error", err)
		return
	}
	i.metrics.RecordsPublished.Add(float64(count))
}

func (i *Ingestor) record(res RunResult, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	i.metrics.RunsTotal.WithLabelValues(res.Source, outcome).Inc()
	i.metrics.RunDuration.WithLabelValues(res.Source).Observe(res.Duration.Seconds())
	i.metrics.RecordsFetched.WithLabelValues(res.Source).Add(float64(res.Fetched))
	i.metrics.RecordsWritten.WithLabelValues(res.Source).Add(float64(res.Written))
	i.metrics.RecordsSkipped.WithLabelValues(res.Source).Add(float64(res.Skipped))
	for reason, n := range res.Drops {
		i.metrics.RecordsDropped.WithLabelValues(res.Source, string(reason)).Add(float64(n))
	}
}

// String summarizes the run for CLI output.
func (r RunResult) String() string {
	return r.Source + " run " + r.RunID.String() +
		": fetched=" + strconv.Itoa(r.Fetched) +
		" normalized=" + strconv.Itoa(r.Normalized) +
		" written=" + strconv.Itoa(r.Written) +
		" skipped=" + strconv.Itoa(r.Skipped) +
		" dropped=" + strconv.Itoa(r.Drops.Total())
}
