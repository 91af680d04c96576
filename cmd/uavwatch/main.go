// Command uavwatch follows a fleet server's live channel and prints every
// event. It reconnects with back-off and gives up after the configured
// number of attempts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/madiyar29925/UavHealthTracker12/internal/fleet"
	"github.com/madiyar29925/UavHealthTracker12/internal/live"
	"github.com/madiyar29925/UavHealthTracker12/internal/watch"
)

type options struct {
	url          string
	logLevel     string
	pingInterval time.Duration
	baseDelay    time.Duration
	maxDelay     time.Duration
	maxAttempts  int
	requirePong  bool
	raw          bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "uavwatch",
		Short:        "Follow the live event stream of a UAV fleet server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return watchFleet(cmd.Context(), opts, out, cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.url, "url", getenv("UAV_WATCH_URL", "ws://localhost:8080/ws"), "live channel URL")
	f.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	f.DurationVar(&opts.pingInterval, "ping-interval", watch.DefaultPingInterval, "liveness probe interval")
	f.DurationVar(&opts.baseDelay, "base-delay", watch.DefaultBaseDelay, "first reconnect delay")
	f.DurationVar(&opts.maxDelay, "max-delay", watch.DefaultMaxDelay, "reconnect delay cap")
	f.IntVar(&opts.maxAttempts, "max-attempts", watch.DefaultMaxAttempts, "reconnect attempts before giving up")
	f.BoolVar(&opts.requirePong, "require-pong", false, "only count pong replies as proof of life")
	f.BoolVar(&opts.raw, "raw", false, "print envelopes as JSON lines")
	return cmd
}

func watchFleet(ctx context.Context, opts options, out, errOut io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	client := watch.New(watch.WSDialer{URL: opts.url}, watch.Options{
		OnMessage: func(env live.Envelope) {
			if opts.raw {
				raw, _ := json.Marshal(env)
				fmt.Fprintln(out, string(raw))
				return
			}
			fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.TimeOnly), describe(env))
		},
		OnStateChange: func(s watch.State) { logger.Info("state", "state", s.String()) },
		OnGiveUp:      func(err error) { logger.Error("giving up", "error", err) },
		Logger:        logger,
		BaseDelay:     opts.baseDelay,
		MaxDelay:      opts.maxDelay,
		PingInterval:  opts.pingInterval,
		MaxAttempts:   opts.maxAttempts,
		RequirePong:   opts.requirePong,
	})
	return client.Run(ctx)
}

// describe renders one envelope as a single human readable line
func describe(env live.Envelope) string {
	switch env.Type {
	case live.TypeInitialData:
		var d live.InitialData
		if err := json.Unmarshal(env.Payload, &d); err != nil {
			break
		}
		return fmt.Sprintf("initial_data: %d uavs (%d active, %d offline), %d alerts, avg battery %d%%",
			len(d.UAVs), d.Stats.ActiveUAVs, d.Stats.OfflineUAVs, len(d.Alerts), d.Stats.AvgBattery)
	case live.TypeUAVUpdate:
		var u fleet.UAV
		if err := json.Unmarshal(env.Payload, &u); err != nil {
			break
		}
		return fmt.Sprintf("uav_update: %s %s battery=%d%% signal=%d%% speed=%.1fm/s altitude=%.0fm",
			u.Name, u.Status, u.BatteryLevel, u.SignalStrength, u.Speed, u.Altitude)
	case live.TypeNewAlert:
		var a fleet.Alert
		if err := json.Unmarshal(env.Payload, &a); err != nil {
			break
		}
		state := "open"
		switch {
		case a.Dismissed:
			state = "dismissed"
		case a.Acknowledged:
			state = "acknowledged"
		}
		return fmt.Sprintf("new_alert: #%d [%s] uav %d %s (%s)", a.ID, a.Severity, a.UAVID, a.Message, state)
	case live.TypeUAVDeleted:
		var d live.UAVDeleted
		if err := json.Unmarshal(env.Payload, &d); err != nil {
			break
		}
		return fmt.Sprintf("uav_deleted: %s (id %d)", d.Name, d.ID)
	}
	return fmt.Sprintf("%s: %s", env.Type, string(env.Payload))
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
