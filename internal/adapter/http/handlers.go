package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/air-quality-etl/internal/adapter/provider"
	"github.com/couchcryptid/air-quality-etl/internal/config"
	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

const (
	liveTimeout        = 30 * time.Second
	correlationTimeout = 15 * time.Second
)

// correlationPoint is the presentation form of one correlation day.
type correlationPoint struct {
	Date      string  `json:"date"`
	PM25      float64 `json:"pm25"`
	FireCount int     `json:"fireCount"`
}

type correlationResponse struct {
	From    string             `json:"from"`
	To      string             `json:"to"`
	LagDays int                `json:"lagDays"`
	Points  []correlationPoint `json:"points"`
	Pearson *float64           `json:"pearson"`
}

// liveFire is a hotspot as served by the live endpoint, with detectedAt in
// the upstream acquisition form.
type liveFire struct {
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	DetectedAt string   `json:"detectedAt"`
	Confidence *string  `json:"confidence"`
	FRP        *float64 `json:"frp"`
}

// handleStations returns normalized live stations.
// GET /api/aqi/stations
func (s *Server) handleStations(c *gin.Context) {
	s.cached(c, "stations", func(ctx context.Context) ([]byte, error) {
		doc, err := s.deps.AQI.FetchStationsDocument(ctx)
		if err != nil {
			return nil, err
		}
		records, err := domain.ExtractRecords(doc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", provider.ErrDecode, err)
		}
		stations, drops := domain.NormalizeLiveStations(records)
		if drops.Total() > 0 {
			s.logger.Debug("live stations dropped", "count", drops.Total())
		}
		if stations == nil {
			stations = []domain.LiveStation{}
		}
		return json.Marshal(gin.H{"stations": stations})
	})
}

// handleLive proxies the upstream AQI document verbatim, optionally scoped to one station.
// GET /api/aqi/live[?uid=]
func (s *Server) handleLive(c *gin.Context) {
	uid := c.Query("uid")
	if uid == "" {
		s.cached(c, "live", s.deps.AQI.FetchDocument)
		return
	}
	s.cached(c, "live:"+uid, func(ctx context.Context) ([]byte, error) {
		return s.deps.AQI.FetchStationFeed(ctx, uid)
	})
}

// handleFires returns live FIRMS hotspots.
// GET /api/fires/live
func (s *Server) handleFires(c *gin.Context) {
	s.cached(c, "fires", func(ctx context.Context) ([]byte, error) {
		points, _, err := s.deps.Fires.FetchHotspots(ctx)
		if err != nil {
			return nil, err
		}
		fires := make([]liveFire, 0, len(points))
		for _, p := range points {
			fires = append(fires, liveFire{
				Latitude:   p.Latitude,
				Longitude:  p.Longitude,
				DetectedAt: domain.FormatDetectedAt(p.DetectedAt),
				Confidence: p.Confidence,
				FRP:        p.FRP,
			})
		}
		return json.Marshal(gin.H{"count": len(fires), "fires": fires})
	})
}

// handleCorrelation pairs daily PM2.5 means with lag-shifted daily fire counts.
// GET /api/correlation?from=YYYY-MM-DD&to=YYYY-MM-DD&lag=N
func (s *Server) handleCorrelation(c *gin.Context) {
	if s.deps.Correlation == nil {
		s.writeError(c, &config.MissingError{Var: "DATABASE_URL"})
		return
	}

	from, err := time.Parse(time.DateOnly, c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be a YYYY-MM-DD date"})
		return
	}
	to, err := time.Parse(time.DateOnly, c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be a YYYY-MM-DD date"})
		return
	}
	lag := 0
	if raw := c.Query("lag"); raw != "" {
		lag, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lag must be an integer"})
			return
		}
	}

	w, err := s.deps.Correlation.Window(from, to, lag)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), correlationTimeout)
	defer cancel()

	result, err := s.deps.Correlation.Correlate(ctx, w)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := correlationResponse{
		From:    w.From.Format(time.DateOnly),
		To:      w.To.Format(time.DateOnly),
		LagDays: w.Lag,
		Points:  make([]correlationPoint, 0, len(result.Points)),
	}
	for _, p := range result.Points {
		resp.Points = append(resp.Points, correlationPoint{
			Date:      p.Date.Format(time.DateOnly),
			PM25:      domain.RoundTo(p.PrimaryMetric, 1),
			FireCount: p.EventCount,
		})
	}
	if result.Pearson != nil {
		r := domain.RoundTo(*result.Pearson, 3)
		resp.Pearson = &r
	}
	c.JSON(http.StatusOK, resp)
}

// cached serves key from the cache, or produces, stores and serves it.
func (s *Server) cached(c *gin.Context, key string, produce func(ctx context.Context) ([]byte, error)) {
	if s.deps.Cache != nil {
		if body, ok := s.deps.Cache.Get(c.Request.Context(), key); ok {
			s.cacheResult("hit")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
		s.cacheResult("miss")
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), liveTimeout)
	defer cancel()

	body, err := produce(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Set(c.Request.Context(), key, body)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) cacheResult(result string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.LiveCache.WithLabelValues(result).Inc()
	}
}

// writeError maps configuration errors to 500 and upstream failures to 502.
func (s *Server) writeError(c *gin.Context, err error) {
	var ue *provider.UpstreamError
	switch {
	case config.IsMissing(err):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.As(err, &ue):
		c.JSON(http.StatusBadGateway, gin.H{
			"error": fmt.Sprintf("%s API error: status %d", ue.Provider, ue.Status),
			"body":  ue.Body,
		})
	case provider.IsUpstream(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
