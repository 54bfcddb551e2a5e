package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// MissingError reports a required environment variable that is not set.
type MissingError struct {
	Var string
}

func (e *MissingError) Error() string {
	return e.Var + " is required"
}

// IsMissing reports whether err is (or wraps) a MissingError.
func IsMissing(err error) bool {
	var m *MissingError
	return errors.As(err, &m)
}

// Defaults collects the fixed reference values used by the normalizers and
// the correlation query. Every component receives them explicitly.
type Defaults struct {
	// Region is assigned to stations whose provider record names no area or city.
	Region string
	// ReferenceLat/ReferenceLon locate the single weather reference point.
	ReferenceLat float64
	ReferenceLon float64
	// CorrelationMaxLagDays widens the event-series fetch before the window start.
	CorrelationMaxLagDays int
	// CorrelationQueryLimit caps the rows fetched per series.
	CorrelationQueryLimit int
}

// DefaultDefaults returns the documented defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Region:                "Delhi",
		ReferenceLat:          28.6139,
		ReferenceLon:          77.209,
		CorrelationMaxLagDays: 5,
		CorrelationQueryLimit: 5000,
	}
}

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatabaseURL string

	// AQI provider.
	AQIAPIURL      string
	AQIAPIKey      string
	AQIStationsURL string
	WAQIToken      string
	WAQIBaseURL    string

	// NASA FIRMS.
	FIRMSAPIKey  string
	FIRMSDays    int
	FIRMSBaseURL string
	FIRMSProduct string
	FIRMSCountry string

	// Open-Meteo.
	WeatherBaseURL string

	Defaults Defaults

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration

	// Optional record publication.
	KafkaBrokers []string
	KafkaTopic   string

	// Live proxy cache.
	RedisURL      string
	LiveCacheTTL  time.Duration
	LiveCacheSize int
}

// Load reads configuration from environment variables, applying defaults where unset.
// Values from .env.local and .env are loaded first without overriding the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("LIVE_CACHE_TTL", "60s")
	if err != nil {
		return nil, err
	}
	cacheSize, err := parsePositiveInt("LIVE_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	firmsDays, err := parsePositiveInt("FIRMS_DAYS", 3)
	if err != nil {
		return nil, err
	}
	if firmsDays > 10 {
		return nil, errors.New("invalid FIRMS_DAYS: must be between 1 and 10")
	}

	defaults := DefaultDefaults()
	if defaults.ReferenceLat, err = parseFloat("REFERENCE_LAT", defaults.ReferenceLat); err != nil {
		return nil, err
	}
	if defaults.ReferenceLon, err = parseFloat("REFERENCE_LON", defaults.ReferenceLon); err != nil {
		return nil, err
	}
	if defaults.CorrelationMaxLagDays, err = parsePositiveInt("CORRELATION_MAX_LAG_DAYS", defaults.CorrelationMaxLagDays); err != nil {
		return nil, err
	}
	if defaults.CorrelationQueryLimit, err = parsePositiveInt("CORRELATION_QUERY_LIMIT", defaults.CorrelationQueryLimit); err != nil {
		return nil, err
	}
	defaults.Region = sharedcfg.EnvOrDefault("DEFAULT_REGION", defaults.Region)

	aqiURL := env("AQIIN_API_URL")

	cfg := &Config{
		DatabaseURL: env("DATABASE_URL"),

		AQIAPIURL:      aqiURL,
		AQIAPIKey:      env("AQIIN_API_KEY"),
		AQIStationsURL: sharedcfg.EnvOrDefault("AQIIN_STATIONS_URL", aqiURL),
		WAQIToken:      env("WAQI_TOKEN"),
		WAQIBaseURL:    sharedcfg.EnvOrDefault("WAQI_BASE_URL", "https://api.waqi.info"),

		FIRMSAPIKey:  env("FIRMS_API_KEY"),
		FIRMSDays:    firmsDays,
		FIRMSBaseURL: sharedcfg.EnvOrDefault("FIRMS_BASE_URL", "https://firms.modaps.eosdis.nasa.gov"),
		FIRMSProduct: sharedcfg.EnvOrDefault("FIRMS_PRODUCT", "VNP14IMGTDL_NRT"),
		FIRMSCountry: sharedcfg.EnvOrDefault("FIRMS_COUNTRY", "IND"),

		WeatherBaseURL: sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.open-meteo.com"),

		Defaults: defaults,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RequestTimeout:  requestTimeout,

		KafkaBrokers: sharedcfg.ParseBrokers(env("KAFKA_BROKERS")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "environment-observations"),

		RedisURL:      env("REDIS_URL"),
		LiveCacheTTL:  cacheTTL,
		LiveCacheSize: cacheSize,
	}

	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q", cfg.LogFormat)
	}

	return cfg, nil
}

// RequireStore checks the settings needed to reach the persistence store.
func (c *Config) RequireStore() error {
	if c.DatabaseURL == "" {
		return &MissingError{Var: "DATABASE_URL"}
	}
	return nil
}

// RequireAQIProvider checks the settings needed for an AQI ingestion run.
func (c *Config) RequireAQIProvider() error {
	if c.AQIAPIURL == "" {
		return &MissingError{Var: "AQIIN_API_URL"}
	}
	return nil
}

// RequireFIRMS checks the settings needed to query NASA FIRMS.
func (c *Config) RequireFIRMS() error {
	if c.FIRMSAPIKey == "" {
		return &MissingError{Var: "FIRMS_API_KEY"}
	}
	return nil
}

// StationFeedToken returns the token for station-scoped WAQI requests:
// WAQI_TOKEN, else the token query parameter embedded in AQIIN_API_URL.
func (c *Config) StationFeedToken() string {
	if c.WAQIToken != "" {
		return c.WAQIToken
	}
	if c.AQIAPIURL == "" {
		return ""
	}
	u, err := url.Parse(c.AQIAPIURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}

// KafkaEnabled reports whether committed records are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := env(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := env(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}
