package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", filepath.Join(home, "state"))
	return home
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, "bike1", cfg.BikeID)
	assert.Equal(t, 30*time.Second, cfg.InactivityTimeout)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 6, cfg.PollThreshold)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 50, cfg.DefaultSpeed)
	assert.Equal(t, geo.DefaultCenter, cfg.MapCenter())
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.Log.File)
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bikepilot.yml")
	data := `backend-url: http://localhost:8000/
bike-id: bike7
poll-interval: 500ms
poll-threshold: 3
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL, "trailing slash trimmed")
	assert.Equal(t, "bike7", cfg.BikeID)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3, cfg.PollThreshold)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 30*time.Second, cfg.InactivityTimeout, "unset keys keep defaults")
}

func TestLoadDefaultPathFile(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".config", "bikepilot")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("bike-id: bike2\n"), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "bike2", cfg.BikeID)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"), nil)
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("bike-id: [unterminated\n"), 0o644))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "c.yml")
	require.NoError(t, os.WriteFile(path, []byte("bike-id: bike7\n"), 0o644))
	t.Setenv("BIKEPILOT_BIKE_ID", "bike9")
	t.Setenv("BIKEPILOT_INACTIVITY_TIMEOUT", "45s")
	t.Setenv("BIKEPILOT_LOG_LEVEL", "warn")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "bike9", cfg.BikeID)
	assert.Equal(t, 45*time.Second, cfg.InactivityTimeout)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestFlagsOverrideEverything(t *testing.T) {
	isolate(t)
	t.Setenv("BIKEPILOT_BIKE_ID", "bike9")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("bike", "", "")
	fs.String("backend", "", "")
	fs.String("token", "", "")
	fs.String("log-level", "", "")
	require.NoError(t, fs.Parse([]string{"--bike", "bike3"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "bike3", cfg.BikeID)
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL, "unset flags do not clobber defaults")
}

func TestValidate(t *testing.T) {
	isolate(t)
	good, err := Load("", nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative backend", func(c *Config) { c.BackendURL = "3.15.51.67" }},
		{"empty bike", func(c *Config) { c.BikeID = " " }},
		{"zero timeout", func(c *Config) { c.InactivityTimeout = 0 }},
		{"zero threshold", func(c *Config) { c.PollThreshold = 0 }},
		{"speed too high", func(c *Config) { c.DefaultSpeed = 120 }},
		{"bad centre", func(c *Config) { c.MapCenterLat = 95 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := good
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
	assert.NoError(t, good.Validate())
}
