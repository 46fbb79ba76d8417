// Package cli is the bikepilot command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/config"
	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/Auto-Bike/frontend/internal/session"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Global flags.
var (
	configFile string
	backendURL string
	bikeID     string
	token      string
	logLevel   string
)

var (
	okText   = color.New(color.FgGreen, color.Bold).SprintFunc()
	failText = color.New(color.FgRed, color.Bold).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "bikepilot",
	Short: "Console for the Auto-Bike remote-controlled bicycle",
	Long: `bikepilot drives an Auto-Bike from the terminal.

  bikepilot tui                     Control panel and navigation map
  bikepilot connect                 Check the bike connection
  bikepilot send forward -s 60      Send one movement command
  bikepilot gps --watch             Follow the bike position
  bikepilot navigate --to "..."     Plan a route and send it to the bike
  bikepilot sim                     Run a simulated bike backend`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failText("error:"), err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (default ~/.config/bikepilot/config.yml)")
	pf.StringVar(&backendURL, "backend", "", "bike backend base URL")
	pf.StringVar(&bikeID, "bike", "", "bike id")
	pf.StringVar(&token, "token", "", "backend auth token")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(simCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(gpsCmd)
	rootCmd.AddCommand(navigateCmd)
}

// loadConfig reads config and sets up logging. The closer releases the log
// file.
func loadConfig(cmd *cobra.Command) (config.Config, io.Closer, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return cfg, nil, err
	}
	closer, err := logging.Init(cfg.Log)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, closer, nil
}

func newHTTPClient(cfg config.Config) *client.HTTPClient {
	return client.NewHTTPClient(cfg.BackendURL, cfg.Token, cfg.RequestTimeout)
}

func newSession(cfg config.Config, c *client.HTTPClient, log *logrus.Entry) *session.Manager {
	return session.New(c, session.Options{
		BikeID:      cfg.BikeID,
		IdleTimeout: cfg.InactivityTimeout,
		Logger:      log,
	})
}

func printStatus(st session.State) {
	text := st.Status.String()
	switch st.Status {
	case session.Connected:
		text = okText(text)
	case session.Error, session.ConnectionFailed, session.ConnectionError:
		text = failText(text)
	default:
		text = warnText(text)
	}
	fmt.Printf("%s %s\n", dimText("status:"), text)
	if st.LastError != "" {
		fmt.Printf("%s %s\n", dimText("detail:"), st.LastError)
	}
}
