package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/cache"
	httpadapter "github.com/couchcryptid/air-quality-etl/internal/adapter/http"
	"github.com/couchcryptid/air-quality-etl/internal/adapter/provider"
	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
	"github.com/couchcryptid/air-quality-etl/internal/observability"
	"github.com/couchcryptid/air-quality-etl/internal/pipeline"
)

// --- mocks ---

type mockAQI struct {
	doc       []byte
	stations  []byte
	feed      []byte
	err       error
	calls     int
	feedUID   string
	feedCalls int
}

func (m *mockAQI) FetchDocument(context.Context) ([]byte, error) {
	m.calls++
	return m.doc, m.err
}

func (m *mockAQI) FetchStationsDocument(context.Context) ([]byte, error) {
	m.calls++
	return m.stations, m.err
}

func (m *mockAQI) FetchStationFeed(_ context.Context, uid string) ([]byte, error) {
	m.feedCalls++
	m.feedUID = uid
	return m.feed, m.err
}

type mockFires struct {
	points []domain.FirePoint
	err    error
}

func (m *mockFires) FetchHotspots(context.Context) ([]domain.FirePoint, domain.DropCounts, error) {
	return m.points, domain.DropCounts{}, m.err
}

type mockSeries struct {
	pm25   []domain.Observation
	events []time.Time
	err    error
}

func (m *mockSeries) PM25Series(context.Context, time.Time, time.Time, int) ([]domain.Observation, error) {
	return m.pm25, m.err
}

func (m *mockSeries) HotspotTimes(context.Context, time.Time, time.Time, int) ([]time.Time, error) {
	return m.events, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(deps httpadapter.Deps) *httpadapter.Server {
	if deps.AQI == nil {
		deps.AQI = &mockAQI{}
	}
	if deps.Fires == nil {
		deps.Fires = &mockFires{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NewMetricsForTesting()
	}
	return httpadapter.NewServer(":0", deps, discardLogger())
}

func get(t *testing.T, srv *httpadapter.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(httpadapter.Deps{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name       string
		ready      httpadapter.ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"no store", nil, http.StatusOK, "ready"},
		{"store reachable", httpadapter.ReadinessFunc(func(context.Context) error { return nil }), http.StatusOK, "ready"},
		{"store down", httpadapter.ReadinessFunc(func(context.Context) error { return fmt.Errorf("dial tcp: refused") }), http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(httpadapter.Deps{Ready: tt.ready}), "/readyz")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, decode(t, rec)["status"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(httpadapter.Deps{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- live stations ---

func TestStations(t *testing.T) {
	aqi := &mockAQI{stations: []byte(`{"data": [
		{"uid": 101, "station": {"name": "Anand Vihar, Delhi", "time": "2024-01-03T13:00:00+05:30"}, "lat": 28.65, "lon": 77.31, "aqi": "312"},
		{"uid": 102, "lat": 28.5},
		{"uid": 103, "station": {"name": "Gurugram"}, "lat": 28.45, "lon": 77.02, "aqi": "-"}
	]}`)}
	rec := get(t, newTestServer(httpadapter.Deps{AQI: aqi}), "/api/aqi/stations")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stations []domain.LiveStation `json:"stations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Stations, 2)

	first := body.Stations[0]
	assert.Equal(t, "101", first.ID)
	assert.Equal(t, "Anand Vihar, Delhi", first.Name)
	require.NotNil(t, first.AQI)
	assert.InDelta(t, 312, *first.AQI, 0)
	assert.Equal(t, domain.CategoryVeryPoor, first.Category)
	require.NotNil(t, first.Region)
	assert.Equal(t, "Delhi", *first.Region)
	require.NotNil(t, first.UpdatedAt)
	assert.Equal(t, "2024-01-03T13:00:00+05:30", *first.UpdatedAt)

	assert.Nil(t, body.Stations[1].AQI)
}

func TestStations_EmptyDocument(t *testing.T) {
	aqi := &mockAQI{stations: []byte(`{"status": "ok"}`)}
	rec := get(t, newTestServer(httpadapter.Deps{AQI: aqi}), "/api/aqi/stations")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"stations": []}`, rec.Body.String())
}

func TestStations_InvalidJSONIs502(t *testing.T) {
	aqi := &mockAQI{stations: []byte(`<html>`)}
	rec := get(t, newTestServer(httpadapter.Deps{AQI: aqi}), "/api/aqi/stations")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "decode")
}

// --- live proxy ---

func TestLive_ProxiesVerbatim(t *testing.T) {
	aqi := &mockAQI{doc: []byte(`{"status":"ok","data":[{"id":"s1"}]}`)}
	rec := get(t, newTestServer(httpadapter.Deps{AQI: aqi}), "/api/aqi/live")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `{"status":"ok","data":[{"id":"s1"}]}`, rec.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestLive_StationScoped(t *testing.T) {
	aqi := &mockAQI{feed: []byte(`{"status":"ok","data":{"idx":1234}}`)}
	rec := get(t, newTestServer(httpadapter.Deps{AQI: aqi}), "/api/aqi/live?uid=1234")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1234", aqi.feedUID)
	assert.Zero(t, aqi.calls)
}

func TestLive_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing configuration",
			err:        &config.MissingError{Var: "AQIIN_API_URL"},
			wantStatus: http.StatusInternalServerError,
			wantError:  "AQIIN_API_URL",
		},
		{
			name:       "upstream status",
			err:        &provider.UpstreamError{Provider: "aqi", Status: 503, Body: "maintenance"},
			wantStatus: http.StatusBadGateway,
			wantError:  "aqi API error: status 503",
		},
		{
			name:       "transport failure",
			err:        &provider.RequestError{Provider: "aqi", Err: errors.New("connection refused")},
			wantStatus: http.StatusBadGateway,
			wantError:  "connection refused",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(httpadapter.Deps{AQI: &mockAQI{err: tt.err}}), "/api/aqi/live")
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, decode(t, rec)["error"], tt.wantError)
		})
	}
}

func TestLive_UpstreamBodyIncluded(t *testing.T) {
	aqi := &mockAQI{err: &provider.UpstreamError{Provider: "aqi", Status: 401, Body: "invalid key"}}
	rec := get(t, newTestServer(httpadapter.Deps{AQI: aqi}), "/api/aqi/live")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "invalid key", decode(t, rec)["body"])
}

func TestLive_Cache(t *testing.T) {
	clock := clockwork.NewFakeClock()
	metrics := observability.NewMetricsForTesting()
	aqi := &mockAQI{doc: []byte(`{"data":[]}`)}
	srv := newTestServer(httpadapter.Deps{
		AQI:     aqi,
		Cache:   cache.NewLRU(16, time.Minute, clock),
		Metrics: metrics,
	})

	for range 3 {
		rec := get(t, srv, "/api/aqi/live")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 1, aqi.calls)

	clock.Advance(time.Minute)
	get(t, srv, "/api/aqi/live")
	assert.Equal(t, 2, aqi.calls)

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LiveCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LiveCache.WithLabelValues("miss")), 0)
}

func TestLive_ErrorsAreNotCached(t *testing.T) {
	aqi := &mockAQI{err: &provider.UpstreamError{Provider: "aqi", Status: 500}}
	srv := newTestServer(httpadapter.Deps{AQI: aqi, Cache: cache.NewLRU(16, time.Minute, nil)})

	get(t, srv, "/api/aqi/live")
	get(t, srv, "/api/aqi/live")
	assert.Equal(t, 2, aqi.calls)
}

// --- fires ---

func TestFires(t *testing.T) {
	conf := "80"
	frp := 12.3
	sourceID := "firms:330.5:28.61:77.20"
	fires := &mockFires{points: []domain.FirePoint{{
		Latitude:   28.61,
		Longitude:  77.2,
		DetectedAt: time.Date(2024, 1, 3, 8, 15, 0, 0, time.UTC),
		Confidence: &conf,
		FRP:        &frp,
		SourceID:   &sourceID,
	}}}
	rec := get(t, newTestServer(httpadapter.Deps{Fires: fires}), "/api/fires/live")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{
		"count": 1,
		"fires": [{"latitude": 28.61, "longitude": 77.2, "detectedAt": "2024-01-03T0815Z", "confidence": "80", "frp": 12.3}]
	}`, rec.Body.String())
}

func TestFires_Empty(t *testing.T) {
	rec := get(t, newTestServer(httpadapter.Deps{Fires: &mockFires{}}), "/api/fires/live")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count": 0, "fires": []}`, rec.Body.String())
}

func TestFires_MissingKeyIs500(t *testing.T) {
	fires := &mockFires{err: &config.MissingError{Var: "FIRMS_API_KEY"}}
	rec := get(t, newTestServer(httpadapter.Deps{Fires: fires}), "/api/fires/live")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "FIRMS_API_KEY")
}

// --- correlation ---

func correlationServer(series *mockSeries) *httpadapter.Server {
	svc := pipeline.NewCorrelationService(series, config.DefaultDefaults(), discardLogger(), observability.NewMetricsForTesting())
	return newTestServer(httpadapter.Deps{Correlation: svc})
}

func TestCorrelation(t *testing.T) {
	series := &mockSeries{
		pm25: []domain.Observation{
			{At: time.Date(2024, 1, 3, 2, 0, 0, 0, time.UTC), Value: 100.04},
			{At: time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC), Value: 120.1},
			{At: time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC), Value: 80},
		},
		events: []time.Time{
			time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC),
		},
	}
	rec := get(t, correlationServer(series), "/api/correlation?from=2024-01-01&to=2024-01-05&lag=1")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t, `{
		"from": "2024-01-01",
		"to": "2024-01-05",
		"lagDays": 1,
		"points": [
			{"date": "2024-01-03", "pm25": 110.1, "fireCount": 2},
			{"date": "2024-01-04", "pm25": 80, "fireCount": 0}
		],
		"pearson": 1
	}`, rec.Body.String())
}

func TestCorrelation_BadParams(t *testing.T) {
	srv := correlationServer(&mockSeries{})

	tests := []struct {
		name  string
		query string
	}{
		{"missing from", "to=2024-01-05"},
		{"bad to", "from=2024-01-01&to=01/05/2024"},
		{"non-integer lag", "from=2024-01-01&to=2024-01-05&lag=two"},
		{"lag above max", "from=2024-01-01&to=2024-01-05&lag=6"},
		{"reversed range", "from=2024-01-05&to=2024-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, srv, "/api/correlation?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestCorrelation_StoreErrorIs500(t *testing.T) {
	rec := get(t, correlationServer(&mockSeries{err: errors.New("relation does not exist")}), "/api/correlation?from=2024-01-01&to=2024-01-02")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decode(t, rec)["error"])
}

func TestCorrelation_NoStoreConfigured(t *testing.T) {
	rec := get(t, newTestServer(httpadapter.Deps{}), "/api/correlation?from=2024-01-01&to=2024-01-02")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "DATABASE_URL")
}
