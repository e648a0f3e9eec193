package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vjranagit/influxseed/internal/config"
	"github.com/vjranagit/influxseed/internal/logging"
	"github.com/vjranagit/influxseed/pkg/influx"
	"github.com/vjranagit/influxseed/pkg/journal"
	"github.com/vjranagit/influxseed/pkg/metrics"
	"github.com/vjranagit/influxseed/pkg/seeder"
)

const (
	version = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// NewCmd builds the seedtest command tree
func NewCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "seedtest [flags]",
		Short:         "seedtest recreates the test bucket and fills it with minute samples",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Args: cobra.NoArgs,
		RunE: doSeed,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "`<path>` to a YAML config file")
	rootCmd.Flags().Bool("dry-run", false, "print line protocol to stdout instead of writing to InfluxDB")
	rootCmd.Flags().String("metrics-file", "", "`<path>` to write run metrics in Prometheus text format")

	historyCmd := &cobra.Command{
		Use:   "history [flags] [run id]",
		Short: "Show recorded seeding runs, or the batches of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE:  doHistory,
	}
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of runs to list")

	rootCmd.AddCommand(historyCmd)
	return rootCmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func doSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}
	metricsFile, err := cmd.Flags().GetString("metrics-file")
	if err != nil {
		return err
	}
	if metricsFile == "" {
		metricsFile = cfg.Metrics.Textfile
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting seedtest",
		zap.String("version", version),
		zap.String("url", cfg.Influx.URL),
		zap.String("org", cfg.Influx.Org),
		zap.String("bucket", cfg.Seed.Bucket),
		zap.String("measurement", cfg.Seed.Measurement),
		zap.String("start", cfg.Seed.Start),
		zap.String("end", cfg.Seed.End),
		zap.Duration("step", cfg.Seed.Step),
		zap.Int("batch_size", cfg.Seed.BatchSize),
		zap.Bool("dry_run", dryRun),
	)

	seedCfg, err := cfg.ToSeederConfig()
	if err != nil {
		return err
	}

	var mgr seeder.BucketManager
	if dryRun {
		mgr = influx.NewDryRun(cmd.OutOrStdout())
	} else {
		token, err := cfg.LoadToken()
		if err != nil {
			return err
		}
		client, err := influx.NewClient(cfg.ToInfluxOptions(token, logger))
		if err != nil {
			return err
		}
		defer client.Close()
		mgr = client
	}

	collector := metrics.NewCollector()
	opts := []seeder.Option{
		seeder.WithLogger(logger.Named("seeder")),
		seeder.WithMetrics(collector),
	}

	// Dry runs leave no history
	if cfg.Journal.Enabled && !dryRun {
		j, err := journal.Open(cfg.ToJournalConfig())
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, seeder.WithRecorder(j))
	}

	res, runErr := seeder.New(seedCfg, mgr, opts...).Run(cmd.Context())

	if metricsFile != "" {
		if err := collector.WriteTextfile(metricsFile); err != nil {
			logger.Warn("Failed to write metrics textfile", zap.String("path", metricsFile), zap.Error(err))
		}
	}

	if runErr != nil {
		var remote *influx.RemoteRequestError
		if errors.As(runErr, &remote) && remote.StatusCode != 0 {
			logger.Error("InfluxDB rejected the request",
				zap.String("op", remote.Op),
				zap.Int("status", remote.StatusCode),
				zap.String("message", remote.Message),
			)
		}
		return runErr
	}

	if !dryRun {
		fmt.Fprintf(cmd.ErrOrStderr(), "Seeded bucket %q (%s): %d samples in %d batches, %s\n",
			res.Bucket.Name, res.Bucket.ID, res.Samples, res.Batches, res.Elapsed.Round(time.Millisecond))
	}
	return nil
}

func doHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	j, err := journal.Open(cfg.ToJournalConfig())
	if err != nil {
		return err
	}
	defer j.Close()

	if len(args) == 1 {
		return printBatches(cmd.OutOrStdout(), j, args[0])
	}
	return printRuns(cmd.OutOrStdout(), j, limit)
}
