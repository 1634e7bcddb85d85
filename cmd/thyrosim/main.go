package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/thyrosim/internal/config"
	"github.com/san-kum/thyrosim/internal/logger"
	"github.com/san-kum/thyrosim/internal/run"
	"github.com/san-kum/thyrosim/internal/storage"
	"github.com/san-kum/thyrosim/internal/telemetry"
)

var (
	configFile  string
	dataDir     string
	logLevel    string
	logFormat   string
	metricsFile string
)

// app carries what every command needs once flags are parsed.
type app struct {
	cfg      *config.AppConfiguration
	log      *logger.Logger
	recorder *telemetry.Recorder
	store    *storage.Store
	runner   *run.Runner
}

var current *app

func main() {
	rootCmd := &cobra.Command{
		Use:           "thyrosim",
		Short:         "thyroid hormone regulation simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			current = a
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "run store directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "console or json")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "write prometheus textfile metrics on exit")

	rootCmd.AddCommand(
		newRunCmd(),
		newListCmd(),
		newShowCmd(),
		newPlotCmd(),
		newExportCSVCmd(),
		newExportJSONCmd(),
		newDeleteCmd(),
		newPresetsCmd(),
		newScenarioCmd(),
		newSweepCmd(),
		newPopulationCmd(),
		newAnalyzeCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if ferr := finish(); err == nil {
		err = ferr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// finish flushes metrics and closes the log, also after a failed command.
func finish() error {
	if current == nil {
		return nil
	}
	defer current.log.Close()
	if path := current.cfg.MetricsFile; path != "" {
		if err := current.recorder.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("data") {
		cfg.DataDir = dataDir
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, err
	}
	rec := telemetry.New()

	return &app{
		cfg:      cfg,
		log:      log,
		recorder: rec,
		store:    storage.New(cfg.DataDir),
		runner:   run.NewRunner(run.WithLogger(log.Logger), run.WithRecorder(rec)),
	}, nil
}
