package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
)

const (
	providerAQI      = "aqi"
	providerWAQIFeed = "waqi_feed"
)

// AQIClient fetches station documents from the configured AQI provider and
// single-station feeds from WAQI.
type AQIClient struct {
	transport
	apiURL      string
	stationsURL string
	apiKey      string
	waqiBaseURL string
	waqiToken   string
}

// NewAQIClient creates an AQI provider client from configuration.
func NewAQIClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *AQIClient {
	return &AQIClient{
		transport:   newTransport(cfg.RequestTimeout, metrics, logger),
		apiURL:      cfg.AQIAPIURL,
		stationsURL: cfg.AQIStationsURL,
		apiKey:      cfg.AQIAPIKey,
		waqiBaseURL: strings.TrimRight(cfg.WAQIBaseURL, "/"),
		waqiToken:   cfg.StationFeedToken(),
	}
}

// FetchDocument returns the raw provider document from AQIIN_API_URL.
func (c *AQIClient) FetchDocument(ctx context.Context) ([]byte, error) {
	if c.apiURL == "" {
		return nil, &config.MissingError{Var: "AQIIN_API_URL"}
	}
	return c.fetchJSON(ctx, providerAQI, c.apiURL, c.bearer())
}

// FetchStationsDocument returns the raw station list from AQIIN_STATIONS_URL.
func (c *AQIClient) FetchStationsDocument(ctx context.Context) ([]byte, error) {
	if c.stationsURL == "" {
		return nil, &config.MissingError{Var: "AQIIN_STATIONS_URL"}
	}
	return c.fetchJSON(ctx, providerAQI, c.stationsURL, c.bearer())
}

// FetchStationFeed returns the WAQI feed document for one station uid.
// The token travels in the query string, so no bearer header is sent.
func (c *AQIClient) FetchStationFeed(ctx context.Context, uid string) ([]byte, error) {
	if c.waqiToken == "" {
		return nil, &config.MissingError{Var: "WAQI_TOKEN"}
	}
	u := fmt.Sprintf("%s/feed/@%s/?token=%s", c.waqiBaseURL, url.PathEscape(uid), url.QueryEscape(c.waqiToken))
	return c.fetchJSON(ctx, providerWAQIFeed, u, acceptJSON())
}

func (c *AQIClient) fetchJSON(ctx context.Context, provider, u string, headers map[string]string) ([]byte, error) {
	body, err := c.get(ctx, provider, u, headers)
	if err != nil {
		return nil, err
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s returned invalid JSON", ErrDecode, provider)
	}
	return body, nil
}

func (c *AQIClient) bearer() map[string]string {
	h := acceptJSON()
	if c.apiKey != "" {
		h["Authorization"] = "Bearer " + c.apiKey
	}
	return h
}

func acceptJSON() map[string]string {
	return map[string]string{"Accept": "application/json"}
}
