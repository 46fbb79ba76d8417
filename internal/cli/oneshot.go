package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Auto-Bike/frontend/internal/client"
	"github.com/Auto-Bike/frontend/internal/logging"
	"github.com/Auto-Bike/frontend/internal/maps"
	"github.com/Auto-Bike/frontend/internal/poller"
	"github.com/Auto-Bike/frontend/internal/session"
	"github.com/spf13/cobra"
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Test the connection to the bike",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		sess := newSession(cfg, newHTTPClient(cfg), logging.For("session"))
		defer sess.Close()
		err = sess.Connect(cmd.Context())
		printStatus(sess.State())
		return err
	},
}

var (
	sendSpeed    int
	sendDuration int
)

var sendCmd = &cobra.Command{
	Use:       "send <forward|backward|left|right|stop>",
	Short:     "Connect and send one movement command",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"forward", "backward", "left", "right", "stop"},
	RunE: func(cmd *cobra.Command, args []string) error {
		command, ok := client.ParseCommand(strings.ToLower(args[0]))
		if !ok {
			return fmt.Errorf("unknown command %q", args[0])
		}
		cfg, closer, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		speed := sendSpeed
		if !cmd.Flags().Changed("speed") {
			speed = cfg.DefaultSpeed
		}
		sess := newSession(cfg, newHTTPClient(cfg), logging.For("session"))
		defer sess.Close()

		if err := sess.Connect(cmd.Context()); err != nil {
			printStatus(sess.State())
			return err
		}
		resp, err := sess.SendCommand(cmd.Context(), command, session.Params{
			Speed:    speed,
			Duration: time.Duration(sendDuration) * time.Second,
		})
		printStatus(sess.State())
		if err != nil {
			return err
		}
		for k, v := range resp {
			fmt.Printf("  %s %v\n", dimText(k+":"), v)
		}
		return nil
	},
}

var gpsWatch bool

var gpsCmd = &cobra.Command{
	Use:   "gps",
	Short: "Print the latest bike position",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, closer, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		p := poller.New(poller.GPSFetcher(newHTTPClient(cfg), cfg.BikeID), poller.Options{
			Threshold: cfg.PollThreshold,
			Timeout:   cfg.RequestTimeout,
			Logger:    logging.For("poller"),
		})
		if !gpsWatch {
			st := p.PollOnce(cmd.Context())
			if st.Err != nil {
				return st.Err
			}
			fmt.Println(okText(st.Position.String()))
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		updates := p.Subscribe()
		if err := p.Start(ctx, cfg.PollInterval); err != nil {
			return err
		}
		defer p.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case st := <-updates:
				if st.Running && st.Attempts == 0 {
					continue
				}
				stamp := dimText(st.UpdatedAt.Format("15:04:05"))
				switch {
				case st.Stopped:
					fmt.Println(stamp, failText(st.Message))
					return poller.ErrExhausted
				case st.Message != "":
					fmt.Println(stamp, warnText(fmt.Sprintf("%s (%d/%d)", st.Message, st.ConsecutiveFailures, p.Threshold())))
				case st.HasFix:
					fmt.Println(stamp, okText(st.Position.String()))
				}
			}
		}
	},
}

var (
	navFrom   string
	navTo     string
	navDryRun bool
)

var navigateCmd = &cobra.Command{
	Use:   "navigate",
	Short: "Plan a route and send it to the bike",
	Long: `navigate resolves the origin and destination, prints the route summary and
sends the trip to the bike. Without --from the bike's current position is
used. Places may be addresses or "lat,lng".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if navTo == "" {
			return fmt.Errorf("--to is required")
		}
		cfg, closer, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx := cmd.Context()
		httpClient := newHTTPClient(cfg)
		planner, err := newPlanner(cfg, httpClient)
		if err != nil {
			return err
		}

		if navFrom == "" {
			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			pos, err := poller.GPSFetcher(httpClient, cfg.BikeID).Fetch(reqCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("current position: %w", err)
			}
			planner.UpdateLocation(pos)
			err = planner.UseCurrentAsOrigin(ctx)
		} else {
			err = planner.SetOrigin(ctx, navFrom)
		}
		if err != nil {
			return err
		}
		if err := planner.SetDestination(ctx, navTo); err != nil {
			return err
		}
		if err := planner.ShowRoute(ctx); err != nil {
			return err
		}

		st := planner.State()
		fmt.Printf("%s %s\n", dimText("from:"), st.Origin.Label)
		fmt.Printf("%s %s\n", dimText("to:  "), st.Destination.Label)
		fmt.Println(routeLine(st.Route))
		if navDryRun {
			return nil
		}
		if err := planner.StartNavigation(ctx); err != nil {
			return err
		}
		fmt.Println(okText("Navigation started"))
		return nil
	},
}

func routeLine(r *maps.Route) string {
	if r == nil {
		return ""
	}
	return r.Summary()
}

func init() {
	sendCmd.Flags().IntVarP(&sendSpeed, "speed", "s", 50, "speed percentage (0-100)")
	sendCmd.Flags().IntVarP(&sendDuration, "duration", "d", 0, "run time in seconds (0 omits it)")

	gpsCmd.Flags().BoolVarP(&gpsWatch, "watch", "w", false, "keep polling until interrupted")

	navigateCmd.Flags().StringVar(&navFrom, "from", "", "origin address or lat,lng (default: bike position)")
	navigateCmd.Flags().StringVar(&navTo, "to", "", "destination address or lat,lng")
	navigateCmd.Flags().BoolVar(&navDryRun, "dry-run", false, "print the route without sending it")
}
