package cli

import (
	"fmt"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/config"
	"github.com/Auto-Bike/frontend/internal/geo"
	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/Auto-Bike/frontend/internal/maps"
	"github.com/Auto-Bike/frontend/internal/navigation"
	"github.com/Auto-Bike/frontend/internal/poller"
	"github.com/Auto-Bike/frontend/internal/tui/app"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	noTelemetry bool
	helpStyle   string
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the control panel and navigation map",
	RunE:  runTUI,
}

func init() {
	tuiCmd.Flags().BoolVar(&noTelemetry, "no-telemetry", false, "do not follow the backend /ws stream")
	tuiCmd.Flags().StringVar(&helpStyle, "help-style", "dark", "key reference style (dark, light, notty)")
}

func newPlanner(cfg config.Config, c *client.HTTPClient) (*navigation.Planner, error) {
	geocoder, err := maps.NewGeocoder(cfg.GeocoderURL, maps.GeocoderOptions{
		Timeout: cfg.RequestTimeout,
		Bounds:  geo.CanadaBounds,
		Country: "ca",
		Logger:  logging.For("geocoder"),
	})
	if err != nil {
		return nil, err
	}
	router := maps.NewRouter(cfg.RouterURL, cfg.RequestTimeout)
	return navigation.NewPlanner(geocoder, router, c, navigation.Options{
		Center: cfg.MapCenter(),
		Bounds: geo.CanadaBounds,
		Logger: logging.For("navigation"),
	}), nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, closer, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logging.For("tui")

	httpClient := newHTTPClient(cfg)
	sess := newSession(cfg, httpClient, logging.For("session"))
	defer sess.Close()

	gps := poller.New(poller.GPSFetcher(httpClient, cfg.BikeID), poller.Options{
		Threshold: cfg.PollThreshold,
		Timeout:   cfg.RequestTimeout,
		Logger:    logging.For("poller"),
	})
	defer gps.Stop()

	planner, err := newPlanner(cfg, httpClient)
	if err != nil {
		return err
	}

	var ws *client.WSClient
	if !noTelemetry {
		url := cfg.TelemetryURL
		if url == "" {
			url = client.DeriveWSURL(cfg.BackendURL)
		}
		ws = client.NewWSClient(url, cfg.Token)
	}

	log.WithField("backend", httpClient.BaseURL()).WithField("bike", cfg.BikeID).Info("console starting")
	m := app.New(app.Deps{
		Session:      sess,
		Poller:       gps,
		Planner:      planner,
		Telemetry:    ws,
		PollInterval: cfg.PollInterval,
		DefaultSpeed: cfg.DefaultSpeed,
		HelpStyle:    helpStyle,
		Logger:       log,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("console: %w", err)
	}
	return nil
}
