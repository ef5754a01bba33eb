package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Bangor", cfg.Portal.City)
	assert.Equal(t, "ME", cfg.Portal.State)
	assert.Equal(t, "https://apps.web.maine.gov/online/hip_search/health-inspection-search.html", cfg.Portal.PageURL)
	assert.Equal(t, 20, cfg.Portal.TimeoutSecs)
	assert.Equal(t, 1, cfg.Portal.FetchAttempts)
	assert.Equal(t, []string{"csrfToken", "_csrf", "__RequestVerificationToken", "authenticity_token"}, cfg.Portal.TokenFields)
	assert.Equal(t, "https://nominatim.openstreetmap.org/search", cfg.Geocode.NominatimURL)
	assert.Equal(t, 1100, cfg.Geocode.MinDelayMs)
	assert.Equal(t, 10, cfg.Geocode.TimeoutSecs)
	assert.Equal(t, 5, cfg.Geocode.Circuit.FailureThreshold)
	assert.False(t, cfg.Geocode.Fallback.Enabled)
	assert.InDelta(t, 44.8016, cfg.Geocode.Fallback.CenterLat, 0.0001)
	assert.Empty(t, cfg.Geocode.Bounds)
	assert.Equal(t, 25, cfg.Run.MaxRows)
	assert.Equal(t, "inspections.json", cfg.Output.Path)
	assert.Equal(t, "America/New_York", cfg.Output.Timezone)
	assert.Equal(t, "scraper.log", cfg.Log.File)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
portal:
  city: Portland
geocode:
  min_delay_ms: 1500
  bounds: [43.0, -71.1, 47.5, -66.9]
run:
  max_rows: 10
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Portland", cfg.Portal.City)
	assert.Equal(t, 1500, cfg.Geocode.MinDelayMs)
	assert.Equal(t, []float64{43.0, -71.1, 47.5, -66.9}, cfg.Geocode.Bounds)
	assert.Equal(t, 10, cfg.Run.MaxRows)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values
	assert.Equal(t, "ME", cfg.Portal.State)
	assert.Equal(t, "inspections.json", cfg.Output.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
portal:
  city: Portland
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("INSPECT_PORTAL_CITY", "Augusta")
	t.Setenv("INSPECT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "Augusta", cfg.Portal.City)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("INSPECT_RUN_MAX_ROWS", "5")
	t.Setenv("INSPECT_OUTPUT_PATH", "/tmp/out.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Run.MaxRows)
	assert.Equal(t, "/tmp/out.json", cfg.Output.Path)
}

func TestDurations(t *testing.T) {
	g := GeocodeConfig{TimeoutSecs: 3, MinDelayMs: 1250}
	assert.Equal(t, 3*time.Second, g.Timeout())
	assert.Equal(t, 1250*time.Millisecond, g.MinDelay())
	assert.Equal(t, 7*time.Second, PortalConfig{TimeoutSecs: 7}.PortalTimeout())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Portal:  PortalConfig{PageURL: "https://example.gov/search", City: "Bangor", State: "ME", TimeoutSecs: 20},
		Geocode: GeocodeConfig{TimeoutSecs: 10, MinDelayMs: 1000},
		Run:     RunConfig{MaxRows: 25},
		Output:  OutputConfig{Path: "inspections.json"},
	}
}

func TestValidate_AllPresent(t *testing.T) {
	assert.NoError(t, validDefaults().Validate())
}

func TestValidate_MinDelayFloor(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.MinDelayMs = 999
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geocode.min_delay_ms")
}

func TestValidate_MissingFields(t *testing.T) {
	cfg := validDefaults()
	cfg.Portal.City = ""
	cfg.Output.Path = ""
	cfg.Run.MaxRows = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "portal.city")
	assert.Contains(t, err.Error(), "output.path")
	assert.Contains(t, err.Error(), "run.max_rows")
}

func TestValidate_Bounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Geocode.Bounds = []float64{1, 2, 3}
	assert.Error(t, cfg.Validate())

	cfg.Geocode.Bounds = []float64{43, -71, 47, -67}
	assert.NoError(t, cfg.Validate())
}
