package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/touchflow/attribution-pipeline/internal/cache"
	"github.com/touchflow/attribution-pipeline/internal/config"
	"github.com/touchflow/attribution-pipeline/internal/consumer"
	"github.com/touchflow/attribution-pipeline/internal/logger"
	"github.com/touchflow/attribution-pipeline/internal/pipeline"
	"github.com/touchflow/attribution-pipeline/internal/queue/sqs"
	"github.com/touchflow/attribution-pipeline/internal/repository"
	"github.com/touchflow/attribution-pipeline/internal/repository/clickhouse"
	"github.com/touchflow/attribution-pipeline/internal/stages"
	"github.com/touchflow/attribution-pipeline/internal/summary"
)

var version = "dev"

var (
	cfg *config.Config
	log *zap.Logger

	flagChunk        int64
	flagFrom         int64
	flagTo           int64
	flagTeam         string
	flagSource       string
	flagSkipExisting bool
	flagDryRun       bool
	flagResume       bool
	flagReset        bool
	flagTimeoutMin   int
	flagSync         bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "attribution",
	Short:   "Marketing attribution batch pipeline",
	Long:    "Classifies tracking events, builds user journeys, and attributes conversions across ad platforms.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		// .env is optional; real deployments use the environment directly.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		log, err = logger.New(cfg.Service.Environment)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().Int64Var(&flagChunk, "chunk", 0, "Chunk size (default from PIPELINE_CHUNK_SIZE)")
	rootCmd.PersistentFlags().Int64Var(&flagFrom, "from", 0, "Only process events with timestamp >= this Unix time")
	rootCmd.PersistentFlags().Int64Var(&flagTo, "to", 0, "Only process events with timestamp <= this Unix time")
	rootCmd.PersistentFlags().StringVar(&flagTeam, "team", "", "Restrict the run to one team")
	rootCmd.PersistentFlags().StringVar(&flagSource, "source", "", "Restrict the run to one source")
	rootCmd.PersistentFlags().BoolVar(&flagSkipExisting, "skip-existing", false, "Skip rows already processed downstream")
	rootCmd.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "Compute everything but write nothing")
	rootCmd.PersistentFlags().BoolVar(&flagResume, "resume", false, "Continue from the last persisted offset")
	rootCmd.PersistentFlags().BoolVar(&flagReset, "reset", false, "Clear any persisted offset before starting")
	rootCmd.PersistentFlags().IntVar(&flagTimeoutMin, "timeout", 0, "Abort the run after this many minutes (0 = no limit)")
	rootCmd.PersistentFlags().BoolVar(&flagSync, "sync", true, "Process chunks in the calling process (the only supported mode)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initSchemaCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(journeysCmd)
	rootCmd.AddCommand(attributionCmd)
	rootCmd.AddCommand(summariesCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(consumeCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("attribution", version)
	},
}

var initSchemaCmd = &cobra.Command{
	Use:   "init-schema",
	Short: "Create the pipeline tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo, cleanup, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		return repo.InitSchema(ctx)
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Classify raw events into enriched events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(stages.JobEnrich)
	},
}

var journeysCmd = &cobra.Command{
	Use:   "journeys",
	Short: "Resolve identities and build journey touchpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(stages.JobJourneys)
	},
}

var attributionCmd = &cobra.Command{
	Use:   "attribution",
	Short: "Attribute conversions to prior touchpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(stages.JobAttribution)
	},
}

var summariesCmd = &cobra.Command{
	Use:   "summaries",
	Short: "Recompute per-user journey summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(stages.JobSummaries)
	},
}

var flagSteps []string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: enrich -> journeys -> attribution -> summaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		order := []string{stages.JobEnrich, stages.JobJourneys, stages.JobAttribution, stages.JobSummaries}
		if len(flagSteps) == 0 {
			return runStages(order...)
		}

		selected := make(map[string]bool, len(flagSteps))
		for _, step := range flagSteps {
			selected[step] = true
		}
		var jobs []string
		for _, job := range order {
			if selected[job] {
				jobs = append(jobs, job)
				delete(selected, job)
			}
		}
		for step := range selected {
			return fmt.Errorf("unknown step: %s", step)
		}
		return runStages(jobs...)
	},
}

func init() {
	runCmd.Flags().StringSliceVar(&flagSteps, "step", nil, "Run only the named steps (enrich, journeys, attribution, summaries), in pipeline order")
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run the SQS ingestion consumer in the foreground",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		repo, cleanup, err := openRepository(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if err := repo.InitSchema(ctx); err != nil {
			return fmt.Errorf("initializing schema: %w", err)
		}

		sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
		if err != nil {
			return fmt.Errorf("creating SQS client: %w", err)
		}

		c := consumer.NewConsumer(cfg, sqsClient, repo, log)
		return c.Start(ctx)
	},
}

// runStages drives the named jobs sequentially over one set of connections.
// Processing always happens in the calling process; there is no queue-job
// dispatch path, so --sync=false has nothing to dispatch to.
func runStages(jobs ...string) error {
	if !flagSync {
		return fmt.Errorf("background dispatch is not supported; run with --sync")
	}

	ctx, cancel := signalContext()
	defer cancel()

	repo, cleanup, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	state := openStateCache(ctx)
	if state != nil {
		defer func() { _ = state.Close() }()
	}

	breaker := pipeline.NewCircuitBreaker(
		cfg.Pipeline.BreakerThreshold,
		time.Duration(cfg.Pipeline.BreakerCooldownSec)*time.Second)
	retry := pipeline.RetryPolicy{
		MaxAttempts:  cfg.Pipeline.MaxRetries,
		InitialDelay: time.Duration(cfg.Pipeline.RetryDelaySec) * time.Second,
	}

	var stateStore pipeline.StateStore
	if state != nil {
		stateStore = state
	}
	orch := pipeline.NewOrchestrator(stateStore, breaker, retry, repo.Reconnect, log)

	filter := repository.Filter{
		TeamID:   flagTeam,
		SourceID: flagSource,
		From:     flagFrom,
		To:       flagTo,
	}
	opts := pipeline.Options{
		ChunkSize:    flagChunk,
		DryRun:       flagDryRun,
		SkipExisting: flagSkipExisting,
		Resume:       flagResume,
		Reset:        flagReset,
		BatchDelay:   time.Duration(cfg.Pipeline.BatchDelayMs) * time.Millisecond,
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = int64(cfg.Pipeline.ChunkSize)
	}

	for _, job := range jobs {
		stage := buildStage(job, repo, filter)

		stats, err := orch.Run(ctx, stage, opts)
		printStats(job, stats)
		if err != nil {
			return fmt.Errorf("%s failed: %w", job, err)
		}
	}
	return nil
}

func buildStage(job string, repo *clickhouse.Repository, filter repository.Filter) pipeline.Stage {
	switch job {
	case stages.JobEnrich:
		return stages.NewEnrichStage(repo, repo, repo, filter, log)
	case stages.JobJourneys:
		return stages.NewJourneyStage(repo, repo, repo, repo, repo, filter, log)
	case stages.JobAttribution:
		return stages.NewAttributionStage(repo, repo, repo, repo, filter, log)
	case stages.JobSummaries:
		agg := summary.NewAggregator(repo, repo, log)
		return stages.NewSummaryStage(repo, repo, agg, repo, filter, log)
	default:
		panic("unknown job type: " + job)
	}
}

func printStats(job string, stats pipeline.Stats) {
	fmt.Printf("\n%s:\n", job)
	fmt.Printf("  Processed: %d\n", stats.Processed)
	fmt.Printf("  Inserted:  %d\n", stats.Inserted)
	fmt.Printf("  Skipped:   %d\n", stats.Skipped)
	fmt.Printf("  Failed:    %d\n", stats.Failed)
	fmt.Printf("  Chunks:    %d\n", stats.Chunks)
}

func openRepository(ctx context.Context) (*clickhouse.Repository, func(), error) {
	client, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to ClickHouse: %w", err)
	}
	repo := clickhouse.NewRepository(client, log)
	cleanup := func() {
		if err := repo.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}
	return repo, cleanup, nil
}

// openStateCache connects to Valkey. The cache only carries resumability, so
// connection failure degrades to running without it.
func openStateCache(ctx context.Context) *cache.StateCache {
	ttl := time.Duration(cfg.Pipeline.ResumeTTLHours) * time.Hour
	state, err := cache.NewStateCache(ctx, cfg.Valkey, ttl, log)
	if err != nil {
		log.Warn("Valkey unavailable, running without resume cache", zap.Error(err))
		return nil
	}
	return state
}

// signalContext cancels on SIGINT/SIGTERM and applies the --timeout flag.
func signalContext() (context.Context, context.CancelFunc) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if flagTimeoutMin > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(flagTimeoutMin)*time.Minute)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Info("Received shutdown signal, finishing current chunk")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
