// Command loadtest drives traffic against a UniSphere server.
//
//	loadtest traffic --profile medium --token $TOKEN --event-id 12
//	loadtest seat-race --event-id 12 --students 200
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/unisphere-campus/server/internal/loadtest"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var baseURL string
	root := &cobra.Command{
		Use:          "loadtest",
		Short:        "Load and concurrency testing for the UniSphere API",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "base URL of the server under test")
	root.AddCommand(newTrafficCommand(&baseURL), newSeatRaceCommand(&baseURL))
	return root
}

func newTrafficCommand(baseURL *string) *cobra.Command {
	var (
		profile   string
		token     string
		eventID   int64
		rps       int
		duration  time.Duration
		readRatio float64
		noRamp    bool
	)
	cmd := &cobra.Command{
		Use:   "traffic",
		Short: "Replay a traffic profile (light, medium, heavy, burst)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, ok := loadtest.LoadProfiles[loadtest.LoadProfile(profile)]
			if !ok {
				return fmt.Errorf("unknown profile %q", profile)
			}
			if rps > 0 {
				config.RequestsPerSecond = rps
			}
			if duration > 0 {
				config.Duration = duration
			}
			if cmd.Flags().Changed("read-ratio") {
				config.ReadRatio = readRatio
			}
			if noRamp {
				config.RampUpTime, config.RampDownTime = 0, 0
			}
			config.EventID = eventID

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Running %s profile: %d req/s for %s\n", profile, config.RequestsPerSecond, config.Duration)
			stats, err := loadtest.NewLoadTester(*baseURL, token).RunCustom(ctx, config)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stats.Report())
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", string(loadtest.ProfileLight), "traffic profile")
	cmd.Flags().StringVar(&token, "token", os.Getenv("UNISPHERE_TOKEN"), "bearer access token (default $UNISPHERE_TOKEN)")
	cmd.Flags().Int64Var(&eventID, "event-id", 0, "event to register and unregister against; reads only when unset")
	cmd.Flags().IntVar(&rps, "rps", 0, "override requests per second")
	cmd.Flags().DurationVar(&duration, "duration", 0, "override steady-state duration")
	cmd.Flags().Float64Var(&readRatio, "read-ratio", 0, "override share of read requests (0.0-1.0)")
	cmd.Flags().BoolVar(&noRamp, "no-ramp", false, "skip ramp up and ramp down")
	return cmd
}

func newSeatRaceCommand(baseURL *string) *cobra.Command {
	var (
		eventID  int64
		students int
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "seat-race",
		Short: "Race many new students for one event and verify its capacity held",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			result, err := loadtest.NewLoadTester(*baseURL, "").SeatRace(ctx, loadtest.RaceConfig{EventID: eventID, Students: students})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.String())
			if !result.CapacityHeld() {
				return fmt.Errorf("event %d: capacity invariant violated", eventID)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&eventID, "event-id", 0, "event to race for")
	cmd.Flags().IntVar(&students, "students", 50, "number of synthetic students to sign up")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	_ = cmd.MarkFlagRequired("event-id")
	return cmd
}
