package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MinGeocodeDelayMs is the smallest pause allowed between external geocode
// calls. The public Nominatim usage policy caps clients at one request per second.
const MinGeocodeDelayMs = 1000

// Config holds the full application configuration.
type Config struct {
	Portal  PortalConfig  `yaml:"portal" mapstructure:"portal"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Run     RunConfig     `yaml:"run" mapstructure:"run"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// PortalConfig configures the health-inspection portal session and search.
type PortalConfig struct {
	PageURL        string   `yaml:"page_url" mapstructure:"page_url"`
	SearchURL      string   `yaml:"search_url" mapstructure:"search_url"`
	City           string   `yaml:"city" mapstructure:"city"`
	State          string   `yaml:"state" mapstructure:"state"`
	UserAgent      string   `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	TokenFields    []string `yaml:"token_fields" mapstructure:"token_fields"`
	FetchAttempts  int      `yaml:"fetch_attempts" mapstructure:"fetch_attempts"`
	RetryBackoffMs int      `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// GeocodeConfig configures address resolution.
type GeocodeConfig struct {
	NominatimURL string         `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	UserAgent    string         `yaml:"user_agent" mapstructure:"user_agent"`
	Email        string         `yaml:"email" mapstructure:"email"`
	Census       bool           `yaml:"census" mapstructure:"census"`
	GoogleKey    string         `yaml:"google_api_key" mapstructure:"google_api_key"`
	TimeoutSecs  int            `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MinDelayMs   int            `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	Bounds       []float64      `yaml:"bounds" mapstructure:"bounds"` // min_lat, min_lng, max_lat, max_lng
	Circuit      CircuitConfig  `yaml:"circuit" mapstructure:"circuit"`
	Fallback     FallbackConfig `yaml:"fallback" mapstructure:"fallback"`
}

// CircuitConfig configures the geocoder circuit breaker.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// FallbackConfig configures the opt-in approximate position used when an
// address cannot be geocoded. Disabled rows are left off the map instead.
type FallbackConfig struct {
	Enabled   bool    `yaml:"enabled" mapstructure:"enabled"`
	CenterLat float64 `yaml:"center_lat" mapstructure:"center_lat"`
	CenterLng float64 `yaml:"center_lng" mapstructure:"center_lng"`
	JitterDeg float64 `yaml:"jitter_deg" mapstructure:"jitter_deg"`
}

// RunConfig bounds a single pipeline run.
type RunConfig struct {
	MaxRows int `yaml:"max_rows" mapstructure:"max_rows"`
}

// OutputConfig configures the snapshot file.
type OutputConfig struct {
	Path            string `yaml:"path" mapstructure:"path"`
	TimestampLayout string `yaml:"timestamp_layout" mapstructure:"timestamp_layout"`
	Timezone        string `yaml:"timezone" mapstructure:"timezone"`
}

// LogConfig configures logging. File is the append-only run log.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// PortalTimeout returns the portal request timeout.
func (c PortalConfig) PortalTimeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Timeout returns the per-call geocode timeout.
func (c GeocodeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// MinDelay returns the pause applied after every external geocode call.
func (c GeocodeConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMs) * time.Millisecond
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INSPECT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("portal.page_url", "https://apps.web.maine.gov/online/hip_search/health-inspection-search.html")
	v.SetDefault("portal.search_url", "https://apps.web.maine.gov/online/hip_search/health-inspection-search.html")
	v.SetDefault("portal.city", "Bangor")
	v.SetDefault("portal.state", "ME")
	v.SetDefault("portal.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36")
	v.SetDefault("portal.timeout_secs", 20)
	v.SetDefault("portal.max_body_bytes", 8<<20)
	v.SetDefault("portal.token_fields", []string{"csrfToken", "_csrf", "__RequestVerificationToken", "authenticity_token"})
	v.SetDefault("portal.fetch_attempts", 1)
	v.SetDefault("portal.retry_backoff_ms", 2000)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.user_agent", "bangor_health_tracker")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.min_delay_ms", 1100)
	v.SetDefault("geocode.circuit.failure_threshold", 5)
	v.SetDefault("geocode.circuit.reset_timeout_secs", 60)
	v.SetDefault("geocode.fallback.enabled", false)
	v.SetDefault("geocode.fallback.center_lat", 44.8016)
	v.SetDefault("geocode.fallback.center_lng", -68.7712)
	v.SetDefault("geocode.fallback.jitter_deg", 0.005)
	v.SetDefault("run.max_rows", 25)
	v.SetDefault("output.path", "inspections.json")
	v.SetDefault("output.timestamp_layout", "January 02, 2006 at 03:04 PM")
	v.SetDefault("output.timezone", "America/New_York")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "scraper.log")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a pipeline run depends on.
func (c *Config) Validate() error {
	var missing []string

	if c.Portal.PageURL == "" {
		missing = append(missing, "portal.page_url is required")
	}
	if c.Portal.City == "" {
		missing = append(missing, "portal.city is required")
	}
	if c.Portal.TimeoutSecs <= 0 {
		missing = append(missing, "portal.timeout_secs must be positive")
	}
	if c.Geocode.TimeoutSecs <= 0 {
		missing = append(missing, "geocode.timeout_secs must be positive")
	}
	if c.Geocode.MinDelayMs < MinGeocodeDelayMs {
		missing = append(missing, "geocode.min_delay_ms must be at least 1000")
	}
	if n := len(c.Geocode.Bounds); n != 0 && n != 4 {
		missing = append(missing, "geocode.bounds must have 4 values (min_lat, min_lng, max_lat, max_lng)")
	}
	if c.Run.MaxRows <= 0 {
		missing = append(missing, "run.max_rows must be positive")
	}
	if c.Output.Path == "" {
		missing = append(missing, "output.path is required")
	}

	if len(missing) > 0 {
		return eris.Errorf("config: %s", strings.Join(missing, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
