package main

import (
	"encoding/json"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspection-map/internal/pipeline"
	"github.com/sells-group/inspection-map/internal/resilience"
	"github.com/sells-group/inspection-map/internal/runlog"
	"github.com/sells-group/inspection-map/internal/snapshot"
)

var (
	runCity    string
	runState   string
	runOutput  string
	runMaxRows int
	runLogFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape the portal and write the inspection snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyRunFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := runlog.Open(cfg.Log.File)
		defer func() { _ = log.Close() }()

		p := pipeline.New(
			newPortalClient(cfg),
			newResolver(cfg, newGeocoder(cfg), log),
			snapshot.NewWriter(cfg.Output.TimestampLayout, cfg.Output.Timezone),
			log,
			pipeline.Options{
				City:    cfg.Portal.City,
				State:   cfg.Portal.State,
				MaxRows: cfg.Run.MaxRows,
				Output:  cfg.Output.Path,
				Retry:   resilience.FromRetryConfig(cfg.Portal.FetchAttempts, cfg.Portal.RetryBackoffMs),
			},
		)

		result, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", result.RunID),
			zap.Int("discovered", result.RowsDiscovered),
			zap.Int("written", result.Written),
			zap.String("output", result.Output),
		)

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("city") {
		cfg.Portal.City = runCity
	}
	if f.Changed("state") {
		cfg.Portal.State = runState
	}
	if f.Changed("output") {
		cfg.Output.Path = runOutput
	}
	if f.Changed("max-rows") {
		cfg.Run.MaxRows = runMaxRows
	}
	if f.Changed("log-file") {
		cfg.Log.File = runLogFile
	}
}

func init() {
	runCmd.Flags().StringVar(&runCity, "city", "", "city to search (default from config)")
	runCmd.Flags().StringVar(&runState, "state", "", "state appended to addresses (default from config)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "snapshot path (default from config)")
	runCmd.Flags().IntVar(&runMaxRows, "max-rows", 0, "maximum valid rows to process (default from config)")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "run log path (default from config)")
	rootCmd.AddCommand(runCmd)
}
