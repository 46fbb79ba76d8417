// Package config loads console settings from defaults, an optional YAML
// file, BIKEPILOT_* environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultBackendURL  = "http://3.15.51.67"
	DefaultBikeID      = "bike1"
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"
	DefaultRouterURL   = "https://router.project-osrm.org"
	EnvPrefix          = "BIKEPILOT"
)

type Config struct {
	BackendURL string `mapstructure:"backend-url"`
	BikeID     string `mapstructure:"bike-id"`
	Token      string `mapstructure:"token"`
	// TelemetryURL is the push channel; empty derives it from BackendURL.
	TelemetryURL      string         `mapstructure:"telemetry-url"`
	InactivityTimeout time.Duration  `mapstructure:"inactivity-timeout"`
	PollInterval      time.Duration  `mapstructure:"poll-interval"`
	PollThreshold     int            `mapstructure:"poll-threshold"`
	RequestTimeout    time.Duration  `mapstructure:"request-timeout"`
	DefaultSpeed      int            `mapstructure:"default-speed"`
	GeocoderURL       string         `mapstructure:"geocoder-url"`
	RouterURL         string         `mapstructure:"router-url"`
	MapCenterLat      float64        `mapstructure:"map-center-lat"`
	MapCenterLng      float64        `mapstructure:"map-center-lng"`
	Log               logging.Config `mapstructure:"log"`
}

// MapCenter is the position the map shows before the first fix.
func (c Config) MapCenter() geo.Position {
	return geo.Position{Lat: c.MapCenterLat, Lng: c.MapCenterLng}
}

// flagKeys maps command-line flag names to config keys where they differ.
var flagKeys = map[string]string{
	"backend":   "backend-url",
	"bike":      "bike-id",
	"token":     "token",
	"log-level": "log.level",
}

// DefaultPath is $HOME/.config/bikepilot/config.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "bikepilot", "config.yml"), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend-url", DefaultBackendURL)
	v.SetDefault("bike-id", DefaultBikeID)
	v.SetDefault("token", "")
	v.SetDefault("telemetry-url", "")
	v.SetDefault("inactivity-timeout", 30*time.Second)
	v.SetDefault("poll-interval", 2*time.Second)
	v.SetDefault("poll-threshold", 6)
	v.SetDefault("request-timeout", 10*time.Second)
	v.SetDefault("default-speed", 50)
	v.SetDefault("geocoder-url", DefaultGeocoderURL)
	v.SetDefault("router-url", DefaultRouterURL)
	v.SetDefault("map-center-lat", geo.DefaultCenter.Lat)
	v.SetDefault("map-center-lng", geo.DefaultCenter.Lng)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)
	v.SetDefault("log.output", logging.OutputFile)
	v.SetDefault("log.file", "")
}

// Load reads the config. An explicit path that does not exist is an error;
// the default path is optional. flags may be nil; only flags the user set
// override the other sources.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	var cfg Config

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || os.IsNotExist(err) || errors.Is(err, os.ErrNotExist)
		if !missing || explicit {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return cfg, fmt.Errorf("binding flag %s: %w", name, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
	if cfg.Log.File == "" {
		cfg.Log.File = logging.DefaultFile()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the console cannot run with.
func (c Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend-url %q is not an absolute URL", c.BackendURL))
	}
	if strings.TrimSpace(c.BikeID) == "" {
		errs = append(errs, errors.New("bike-id must not be empty"))
	}
	if c.InactivityTimeout <= 0 {
		errs = append(errs, errors.New("inactivity-timeout must be positive"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll-interval must be positive"))
	}
	if c.PollThreshold < 1 {
		errs = append(errs, errors.New("poll-threshold must be at least 1"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request-timeout must be positive"))
	}
	if c.DefaultSpeed < 0 || c.DefaultSpeed > 100 {
		errs = append(errs, fmt.Errorf("default-speed %d outside 0..100", c.DefaultSpeed))
	}
	if !c.MapCenter().Valid() {
		errs = append(errs, fmt.Errorf("map centre %s is not a valid coordinate", c.MapCenter()))
	}
	return errors.Join(errs...)
}
