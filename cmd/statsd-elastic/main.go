package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/statsd-elastic/internal/host"
	"github.com/ethpandaops/statsd-elastic/internal/index"
	"github.com/ethpandaops/statsd-elastic/internal/version"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statsd-elastic",
		Short: "Flush statsd aggregates to Elasticsearch",
		Long: `statsd-elastic reads aggregated statsd snapshots on a fixed interval
and writes them to Elasticsearch as date-partitioned documents through
the bulk API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}

	cmd.PersistentFlags().StringVar(
		&cfgFile, "config", "",
		"path to config file",
	)
	cmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)",
	)

	cmd.AddCommand(flushCmd())
	cmd.AddCommand(indexCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.FullWithPlatform())
		},
	}
}

func indexCmd() *cobra.Command {
	var (
		prefix      string
		granularity string
		at          string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Print the index name for a point in time",
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := time.Now()

			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("parsing --at %q: %w", at, err)
				}

				ts = parsed
			}

			fmt.Fprintln(cmd.OutOrStdout(), index.NewResolver(prefix, granularity).Resolve(ts))

			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "statsd", "index name prefix")
	cmd.Flags().StringVar(&granularity, "granularity", "day", "date suffix (day, month, year)")
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 time, defaults to now")

	return cmd
}

func flushCmd() *cobra.Command {
	var snapshotPath string

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Flush one snapshot and wait for the bulk response",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, cfg, err := setup()
			if err != nil {
				return err
			}

			if snapshotPath != "" {
				cfg.SnapshotPath = snapshotPath
			}

			if cfg.SnapshotPath == "" {
				return fmt.Errorf("--snapshot or snapshot_path is required")
			}

			// One-shot runs never expose the health server.
			cfg.Health.Addr = "-"

			h, err := host.New(log, cfg, host.NewFileSource(cfg.SnapshotPath))
			if err != nil {
				return fmt.Errorf("creating host: %w", err)
			}

			ctx, cancel := signal.NotifyContext(
				context.Background(),
				syscall.SIGINT,
				syscall.SIGTERM,
			)
			defer cancel()

			b := h.Backend()

			if err := b.Start(ctx); err != nil {
				return fmt.Errorf("starting backend: %w", err)
			}

			defer b.Stop()

			req, err := h.Cycle(ctx, time.Now())
			if err != nil {
				return err
			}

			res, err := req.Wait(ctx)
			if err != nil {
				return fmt.Errorf("waiting for bulk response: %w", err)
			}

			log.WithFields(logrus.Fields{
				"index":     req.Index,
				"documents": req.Len(),
				"outcome":   res.Outcome,
				"status":    res.StatusCode,
			}).Info("Flush finished")

			if res.Outcome.Failed() {
				return fmt.Errorf("flush %s: %w", res.Outcome, res.Err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "snapshot JSON file, overrides snapshot_path")

	return cmd
}

// setup loads the config file and builds the logger.
func setup() (*logrus.Logger, *host.Config, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if cfgFile == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}

	cfg, err := host.LoadConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	// CLI flag overrides config file.
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing log level %q: %w", cfg.LogLevel, err)
	}

	log.SetLevel(level)

	return log, cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	log, cfg, err := setup()
	if err != nil {
		return err
	}

	if cfg.SnapshotPath == "" {
		return fmt.Errorf("snapshot_path is required")
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer cancel()

	h, err := host.New(log, cfg, host.NewFileSource(cfg.SnapshotPath))
	if err != nil {
		return fmt.Errorf("creating host: %w", err)
	}

	log.Info("Starting statsd-elastic")

	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("starting host: %w", err)
	}

	<-ctx.Done()

	log.Info("Shutting down statsd-elastic")

	if err := h.Stop(); err != nil {
		log.WithError(err).Error("Error during shutdown")
		return fmt.Errorf("stopping host: %w", err)
	}

	log.Info("Shutdown complete")

	return nil
}
