package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/Auto-Bike/frontend/internal/sim"
	"github.com/spf13/cobra"
)

var (
	scenarioFile string
	simHost      string
	simPort      int
	simToken     string
)

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Run a simulated bike backend",
	Long: `sim serves the bike backend endpoints with simulated bikes so the console
can be used without hardware. Bikes, GPS faults and connect behaviour come
from a YAML scenario file.`,
	RunE: runSim,
}

func init() {
	f := simCmd.Flags()
	f.StringVar(&scenarioFile, "scenario", "", "scenario YAML file (default: one healthy bike)")
	f.StringVar(&simHost, "host", "", "listen host (overrides scenario)")
	f.IntVar(&simPort, "port", 0, "listen port (overrides scenario)")
	f.StringVar(&simToken, "require-token", "", "token clients must present (overrides scenario)")
}

func runSim(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" {
		level = "info"
	}
	if _, err := logging.Init(logging.Config{
		Level:  level,
		Format: logging.FormatText,
		Output: logging.OutputStderr,
	}); err != nil {
		return err
	}
	log := logging.For("sim")

	sc := sim.DefaultScenario()
	if scenarioFile != "" {
		var err error
		if sc, err = sim.LoadScenario(scenarioFile); err != nil {
			return err
		}
	}
	if simHost != "" {
		sc.Server.Host = simHost
	}
	if simPort != 0 {
		sc.Server.Port = simPort
	}
	if simToken != "" {
		sc.Server.Token = simToken
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("bikes", len(sc.Bikes)).WithField("scenario", scenarioFile).Info("starting simulation")
	return sim.NewServer(sc, log).Run(ctx)
}
