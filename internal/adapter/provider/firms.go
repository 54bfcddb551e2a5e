package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
)

const providerFIRMS = "firms"

// FIRMSClient fetches country CSV exports from NASA FIRMS.
type FIRMSClient struct {
	transport
	baseURL string
	apiKey  string
	product string
	country string
	days    int
}

// NewFIRMSClient creates a FIRMS client from configuration.
func NewFIRMSClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *FIRMSClient {
	return &FIRMSClient{
		transport: newTransport(cfg.RequestTimeout, metrics, logger),
		baseURL:   strings.TrimRight(cfg.FIRMSBaseURL, "/"),
		apiKey:    cfg.FIRMSAPIKey,
		product:   cfg.FIRMSProduct,
		country:   cfg.FIRMSCountry,
		days:      cfg.FIRMSDays,
	}
}

// FetchCSV returns the raw CSV for the configured product, country and day range.
func (c *FIRMSClient) FetchCSV(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", &config.MissingError{Var: "FIRMS_API_KEY"}
	}
	u := fmt.Sprintf("%s/api/country/csv/%s/%s/%s/%d",
		c.baseURL, url.PathEscape(c.apiKey), url.PathEscape(c.product), url.PathEscape(c.country), c.days)

	body, err := c.get(ctx, providerFIRMS, u, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchHotspots fetches and parses the CSV into fire points.
func (c *FIRMSClient) FetchHotspots(ctx context.Context) ([]domain.FirePoint, domain.DropCounts, error) {
	csv, err := c.FetchCSV(ctx)
	if err != nil {
		return nil, nil, err
	}
	points, drops := domain.ParseHotspots(csv)
	return points, drops, nil
}
