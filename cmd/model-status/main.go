package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/matchedge/internal/app"
	"github.com/yourusername/matchedge/internal/config"
)

var (
	configFile string
	asJSON     bool

	cfg    *config.Config
	logger *logrus.Logger
	stack  *app.Stack
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	rootCmd.AddCommand(versionsCmd, liveCmd, rollbackCmd)
}

var rootCmd = &cobra.Command{
	Use:   "model-status",
	Short: "Inspect and manage registered model artifacts",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = app.LoadConfig(cmd.Context(), configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger = app.NewLogger(cfg)
		logger.SetLevel(logrus.WarnLevel)
		stack, err = app.Open(cmd.Context(), cfg, logger, app.Options{Database: true, Kafka: true})
		if err != nil {
			return fmt.Errorf("failed to setup dependencies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stack != nil {
			stack.Close()
		}
	},
}

var versionsCmd = &cobra.Command{
	Use:   "versions <league>",
	Short: "List every registered artifact of a league, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := stack.Registry.Versions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return app.WriteJSON(os.Stdout, records)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATUS\tSAMPLES\tLEARNERS\tTRAINED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", r.Version, r.Status, r.SampleCount, len(r.Learners), r.TrainedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var liveCmd = &cobra.Command{
	Use:   "live <league>",
	Short: "Load the live artifact of a league and show its calibration state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Serving.RequestTimeout())
		defer cancel()

		live, err := stack.Registry.Live(ctx, args[0])
		if err != nil {
			return err
		}
		status := struct {
			League      string      `json:"league"`
			Version     string      `json:"version"`
			TrainedAt   time.Time   `json:"trained_at"`
			Learners    []string    `json:"learners"`
			Calibration interface{} `json:"calibration"`
		}{
			League:      live.League,
			Version:     live.Version(),
			TrainedAt:   live.Artifact.Metadata.TrainedAt,
			Learners:    live.Artifact.Metadata.Learners,
			Calibration: live.Calibrator.Status(),
		}
		if asJSON {
			return app.WriteJSON(os.Stdout, status)
		}
		fmt.Printf("League:      %s\n", status.League)
		fmt.Printf("Version:     %s\n", status.Version)
		fmt.Printf("Trained at:  %s\n", status.TrainedAt.Format(time.RFC3339))
		fmt.Printf("Learners:    %v\n", status.Learners)
		fmt.Printf("Calibration: %+v\n", status.Calibration)
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <league>",
	Short: "Reinstate the previously live artifact of a league",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := stack.Registry.Rollback(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s rolled back to %s\n", args[0], version)
		return nil
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
