package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lilybooks/lily/internal/calllog"
	"github.com/lilybooks/lily/internal/checker"
	"github.com/lilybooks/lily/internal/config"
	"github.com/lilybooks/lily/internal/home"
	"github.com/lilybooks/lily/internal/pipeline"
	"github.com/lilybooks/lily/internal/providers"
	"github.com/lilybooks/lily/internal/store"
	"github.com/lilybooks/lily/internal/tokens"
	"github.com/lilybooks/lily/internal/writer"
	"github.com/lilybooks/lily/version"
)

var (
	cfgFile string
	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "lily",
	Short: "Public-domain book modernization pipeline",
	Long: `Lily rewrites public-domain books into contemporary English with an
LLM-backed pipeline, one durable project per book.

The pipeline stages:
  - Ingest and split a plain-text source into chapters and paragraphs
  - Transform paragraphs in adaptive token-budgeted batches
  - Validate every rewrite with an independent QA model
  - Remediate chapters that fail validation
  - Deliver the chapter documents plus a manifest for rendering`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.lily/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "lily home directory (default: ~/.lily)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "debug logging",
	)

	rootCmd.AddCommand(runCmd, statusCmd, remediateCmd, initCmd, versionCmd)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openProject resolves the home directory and opens the project store.
func openProject(slug string, logger *slog.Logger) (*store.Store, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	return store.New(h.Project(slug), logger)
}

// newClient builds an LLM client from one provider block.
func newClient(pc config.ProviderConfig) (providers.LLMClient, error) {
	switch pc.Type {
	case "", "openai":
		return providers.NewOpenAIClient(pc.ToOpenAIConfig()), nil
	case "mock":
		return providers.NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}

// buildPipeline wires the writer, checker and pipeline from config.
func buildPipeline(cfg *config.Config, s *store.Store, logger *slog.Logger) (*pipeline.Pipeline, error) {
	writerClient, err := newClient(cfg.Writer)
	if err != nil {
		return nil, fmt.Errorf("writer provider: %w", err)
	}
	checkerClient, err := newClient(cfg.Checker)
	if err != nil {
		return nil, fmt.Errorf("checker provider: %w", err)
	}

	// Every backend call lands in the project's call trace. Throttling
	// wraps the trace so limiter waits are not recorded as call latency.
	recorder := calllog.NewRecorder(s.Project().CallLogPath(), logger)
	writerClient = providers.Throttle(calllog.Wrap(writerClient, recorder))
	checkerClient = providers.Throttle(calllog.Wrap(checkerClient, recorder))

	est := tokens.NewEstimator(logger)
	exec := writer.NewExecutor(writerClient, writer.ExecutorConfig{
		Model:       cfg.Writer.Model,
		Temperature: cfg.Writer.Temperature,
		MaxTokens:   cfg.Writer.MaxTokens,
		MaxAttempts: cfg.Pipeline.MaxRetryAttempts,
		CallTimeout: cfg.Pipeline.CallTimeout,
	}, logger)
	disp := writer.NewDispatcher(exec, est, writer.DispatcherConfig{
		Model:              cfg.Writer.Model,
		TargetUtilization:  cfg.Pipeline.TargetUtilization,
		MinBatchSize:       cfg.Pipeline.MinBatchSize,
		MaxBatchSize:       cfg.Pipeline.MaxBatchSize,
		SafetyMargin:       cfg.Pipeline.SafetyMargin,
		MaxConcurrentCalls: cfg.Pipeline.MaxConcurrentCalls,
	}, logger)
	chk := checker.New(checkerClient, checker.Config{
		Model:       cfg.Checker.Model,
		Temperature: cfg.Checker.Temperature,
		MaxTokens:   cfg.Checker.MaxTokens,
		MaxAttempts: cfg.Pipeline.MaxRetryAttempts,
		CallTimeout: cfg.Pipeline.CallTimeout,
	}, logger)

	return pipeline.New(s, disp, chk, pipeline.Config{
		MinFidelity: cfg.Pipeline.MinFidelity,
	}, logger), nil
}
