package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
)

// SeriesReader reads the two correlated series from the store.
type SeriesReader interface {
	PM25Series(ctx context.Context, start, end time.Time, limit int) ([]domain.Observation, error)
	HotspotTimes(ctx context.Context, start, end time.Time, limit int) ([]time.Time, error)
}

// Correlation is the result of one correlation query.
type Correlation struct {
	Window domain.CorrelationWindow
	Points []domain.CorrelationPoint
	// Pearson is nil when the coefficient is undefined.
	Pearson *float64
}

// CorrelationService pairs daily mean PM2.5 with lag-shifted daily fire counts.
type CorrelationService struct {
	reader   SeriesReader
	defaults config.Defaults
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewCorrelationService creates a CorrelationService.
func NewCorrelationService(reader SeriesReader, defaults config.Defaults, logger *slog.Logger, metrics *observability.Metrics) *CorrelationService {
	return &CorrelationService{reader: reader, defaults: defaults, logger: logger, metrics: metrics}
}

// Window validates the query parameters against the configured maximum lag.
func (s *CorrelationService) Window(from, to time.Time, lag int) (domain.CorrelationWindow, error) {
	return domain.NewCorrelationWindow(from, to, lag, s.defaults.CorrelationMaxLagDays)
}

// Correlate fetches both series concurrently and joins them once both complete.
func (s *CorrelationService) Correlate(ctx context.Context, w domain.CorrelationWindow) (Correlation, error) {
	start := time.Now()
	limit := s.defaults.CorrelationQueryLimit

	var (
		primary []domain.Observation
		events  []time.Time
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		from, to := w.PrimaryRange()
		obs, err := s.reader.PM25Series(gctx, from, to, limit)
		if err != nil {
			return fmt.Errorf("read pm25 series: %w", err)
		}
		primary = obs
		return nil
	})
	g.Go(func() error {
		from, to := w.EventRange(s.defaults.CorrelationMaxLagDays)
		times, err := s.reader.HotspotTimes(gctx, from, to, limit)
		if err != nil {
			return fmt.Errorf("read hotspot times: %w", err)
		}
		events = times
		return nil
	})
	if err := g.Wait(); err != nil {
		return Correlation{}, err
	}

	if len(primary) == limit || len(events) == limit {
		s.logger.Warn("correlation series truncated at query limit",
			"limit", limit, "pm25_rows", len(primary), "hotspot_rows", len(events))
	}

	points := domain.Correlate(primary, events, w)
	result := Correlation{Window: w, Points: points}
	if r, ok := domain.Pearson(points); ok {
		result.Pearson = &r
	}

	s.metrics.CorrelationDuration.Observe(time.Since(start).Seconds())
	s.metrics.CorrelationPoints.Observe(float64(len(points)))
	s.logger.Debug("correlation computed",
		"from", w.From.Format(time.DateOnly),
		"to", w.To.Format(time.DateOnly),
		"lag", w.Lag,
		"points", len(points),
	)
	return result, nil
}
