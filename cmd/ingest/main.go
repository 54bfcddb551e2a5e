// Command ingest performs one ingestion run for a single upstream source:
// fetch, normalize, write to PostgreSQL and optionally publish to Kafka.
// Scheduling is left to the caller (cron, a Kubernetes CronJob, CI).
//
// Usage:
//
//	go run ./cmd/ingest -source aqi
//	go run ./cmd/ingest -source fires -dry-run
//	go run ./cmd/ingest -source weather -input testdata/forecast.json
//	go run ./cmd/ingest -migrate
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/air-quality-etl/internal/adapter/kafka"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/postgres"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/provider"
	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
)

type options struct {
	source  string
	migrate bool
	dryRun  bool
	input   string
}

func main() {
	var opts options
	flag.StringVar(&opts.source, "source", "", "source to ingest: aqi, fires or weather")
	flag.BoolVar(&opts.migrate, "migrate", false, "apply schema migrations before ingesting")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "normalize without writing or publishing")
	flag.StringVar(&opts.input, "input", "", "read the upstream payload from this file instead of fetching")
	flag.Parse()

	if err := opts.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, logger); err != nil {
		logger.Error("ingest failed", "source", opts.source, "error", err)
		os.Exit(1)
	}
}

func (o options) validate() error {
	switch o.source {
	case pipeline.SourceAQI, pipeline.SourceFires, pipeline.SourceWeather:
	case "":
		if !o.migrate {
			return errors.New("-source is required unless -migrate is set")
		}
	default:
		return fmt.Errorf("unknown -source %q", o.source)
	}
	if o.migrate && o.dryRun {
		return errors.New("-migrate cannot be combined with -dry-run")
	}
	return nil
}

// requireConfig checks every setting the run needs before any network call.
func requireConfig(cfg *config.Config, o options) error {
	if o.migrate || !o.dryRun {
		if err := cfg.RequireStore(); err != nil {
			return err
		}
	}
	if o.input != "" {
		return nil
	}
	switch o.source {
	case pipeline.SourceAQI:
		return cfg.RequireAQIProvider()
	case pipeline.SourceFires:
		return cfg.RequireFIRMS()
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, o options, logger *slog.Logger) error {
	if err := requireConfig(cfg, o); err != nil {
		return err
	}

	if o.migrate {
		if err := postgres.Migrate(cfg.DatabaseURL, logger); err != nil {
			return err
		}
		if o.source == "" {
			return nil
		}
	}

	metrics := observability.NewMetrics()
	src := newSource(cfg, o, metrics, logger)

	var ingestOpts []pipeline.Option
	var gateway pipeline.Gateway
	if o.dryRun {
		ingestOpts = append(ingestOpts, pipeline.WithDryRun())
	} else {
		store, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		gateway = store

		if cfg.KafkaEnabled() {
			pub := kafkaadapter.NewPublisher(cfg, logger)
			defer func() {
				if err := pub.Close(); err != nil {
					logger.Error("kafka publisher close error", "error", err)
				}
			}()
			ingestOpts = append(ingestOpts, pipeline.WithPublisher(pub))
		}
	}

	ing := pipeline.NewIngestor(gateway, cfg.Defaults, logger, metrics, ingestOpts...)

	var (
		res pipeline.RunResult
		err error
	)
	switch o.source {
	case pipeline.SourceAQI:
		res, err = ing.RunAQI(ctx, src)
	case pipeline.SourceFires:
		res, err = ing.RunFires(ctx, src)
	case pipeline.SourceWeather:
		res, err = ing.RunWeather(ctx, src)
	}
	if err != nil {
		return err
	}

	fmt.Println(res)
	return nil
}

// newSource reads the payload from -input when given, otherwise from the provider.
func newSource(cfg *config.Config, o options, metrics *observability.Metrics, logger *slog.Logger) pipeline.Source {
	if o.input != "" {
		return pipeline.FileSource(o.input)
	}
	switch o.source {
	case pipeline.SourceAQI:
		return pipeline.SourceFunc(provider.NewAQIClient(cfg, metrics, logger).FetchDocument)
	case pipeline.SourceFires:
		firms := provider.NewFIRMSClient(cfg, metrics, logger)
		return pipeline.SourceFunc(func(ctx context.Context) ([]byte, error) {
			csv, err := firms.FetchCSV(ctx)
			return []byte(csv), err
		})
	default:
		return pipeline.SourceFunc(provider.NewWeatherClient(cfg, metrics, logger).FetchDocument)
	}
}
