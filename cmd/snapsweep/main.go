package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"

	"github.com/opsgrove/snapsweep/internal/config"
	"github.com/opsgrove/snapsweep/internal/version"
	"github.com/opsgrove/snapsweep/pkg/aws"
	"github.com/opsgrove/snapsweep/pkg/executor"
	"github.com/opsgrove/snapsweep/pkg/formatter"
	"github.com/opsgrove/snapsweep/pkg/runner"
	"github.com/opsgrove/snapsweep/pkg/scheduler"
)

var (
	cfgFile       string
	region        string
	retentionDays int
	minKeep       int
	dryRun        bool
	schedule      string
	topicARN      string
	verbose       bool
	showVersion   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "snapsweep",
		Short: "Clean up expired EBS snapshots under a retention policy",
		Long: `snapsweep deletes EBS snapshots that have outlived their retention
age while enforcing independent safeguards: a minimum number of
snapshots is always kept per volume, and snapshots that are tagged as
protected, referenced by an AMI, or taken from a volume tagged as
critical are never deleted.

By default snapsweep only reports what it would delete. Pass
--dry-run=false to perform deletions.`,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "Path to YAML config file")
	rootCmd.Flags().StringVarP(&region, "region", "r", "", "AWS region (default: us-east-1 or AWS_REGION)")
	rootCmd.Flags().IntVar(&retentionDays, "retention-days", 30, "Snapshot retention age in days")
	rootCmd.Flags().IntVar(&minKeep, "min-keep", 3, "Minimum snapshots to keep per volume")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", true, "Report deletions without performing them")
	rootCmd.Flags().StringVar(&schedule, "schedule", "", "Cron expression to run on a schedule instead of once")
	rootCmd.Flags().StringVar(&topicARN, "topic-arn", "", "SNS topic ARN for the run report")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Println(version.String())
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	logger := newLogger(verbose || cfg.LogLevel == "debug")

	pol := cfg.Policy()
	if err := pol.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ec2Client, err := aws.NewEC2Client(ctx, cfg.Region, logger)
	if err != nil {
		return err
	}

	var notifier runner.Notifier
	if cfg.TopicARN != "" {
		snsNotifier, err := aws.NewSNSNotifier(ctx, cfg.Region, cfg.TopicARN, logger)
		if err != nil {
			return err
		}
		notifier = snsNotifier
	}

	r := runner.New(ec2Client, executor.New(ec2Client, logger), notifier, pol, logger)

	if cfg.Schedule == "" {
		return runOnce(ctx, r)
	}
	return runScheduled(ctx, r, cfg.Schedule, logger)
}

// runOnce performs a single cleanup pass with scan progress feedback.
func runOnce(ctx context.Context, r *runner.Runner) error {
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond)
	s.Suffix = " Analyzing EBS snapshots ..."
	s.Start()

	report, err := r.Run(ctx)
	s.Stop()
	if err != nil {
		return err
	}

	formatter.PrintReportTable(os.Stdout, report)
	formatter.PrintRunSummary(os.Stdout, report)
	return nil
}

// runScheduled keeps the process alive and triggers cleanup passes on
// the cron schedule until interrupted.
func runScheduled(ctx context.Context, r *runner.Runner, spec string, logger log15.Logger) error {
	sched := scheduler.New(spec, func(ctx context.Context) {
		report, err := r.Run(ctx)
		if err != nil {
			logger.Error("cleanup run failed", "error", err)
			return
		}
		formatter.PrintReportTable(os.Stdout, report)
		formatter.PrintRunSummary(os.Stdout, report)
	}, logger)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	if next := sched.NextRun(); next != nil {
		logger.Info("waiting for next run", "next", next.Format(time.RFC3339))
	}
	<-ctx.Done()
	sched.Stop()
	return nil
}

// applyFlagOverrides lets explicit command-line flags win over file and
// environment configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("region") {
		cfg.Region = region
	}
	if cmd.Flags().Changed("retention-days") {
		cfg.Retention.Days = retentionDays
	}
	if cmd.Flags().Changed("min-keep") {
		cfg.Retention.MinSnapshotsToKeep = minKeep
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Retention.DryRun = &dryRun
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Schedule = schedule
	}
	if cmd.Flags().Changed("topic-arn") {
		cfg.TopicARN = topicARN
	}
}

// newLogger sets up logfmt logging to stdout.
func newLogger(debug bool) log15.Logger {
	logger := log15.New()
	level := log15.LvlInfo
	if debug {
		level = log15.LvlDebug
	}
	logger.SetHandler(log15.LvlFilterHandler(
		level,
		log15.StreamHandler(os.Stdout, log15.LogfmtFormat()),
	))
	return logger
}
