package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/polzovatel/easy-apply-agent/internal/answers"
	"github.com/polzovatel/easy-apply-agent/internal/config"
	"github.com/polzovatel/easy-apply-agent/internal/form"
	"github.com/polzovatel/easy-apply-agent/internal/llm"
	"github.com/polzovatel/easy-apply-agent/internal/qabank"
	"github.com/polzovatel/easy-apply-agent/internal/recovery"
	"github.com/polzovatel/easy-apply-agent/internal/runner"
	"github.com/polzovatel/easy-apply-agent/internal/session"
)

var runOpts struct {
	url          string
	title        string
	company      string
	formSelector string
	reportPath   string
	saveState    string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "fill one application form at the given URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runApplication(cmd.Context(), cfg)
	},
}

func init() {
	runCmd.Flags().StringVar(&runOpts.url, "url", "", "application form URL (required)")
	runCmd.Flags().StringVar(&runOpts.title, "title", "", "job title, used as answer context")
	runCmd.Flags().StringVar(&runOpts.company, "company", "", "company name, used as answer context")
	runCmd.Flags().StringVar(&runOpts.formSelector, "form", "form", "CSS selector of the application form")
	runCmd.Flags().StringVar(&runOpts.reportPath, "report", "", "path to write the fill report CSV")
	runCmd.Flags().StringVar(&runOpts.saveState, "save-state", "", "path to save updated storage state")
	_ = runCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(runCmd)
}

func runApplication(parent context.Context, cfg *config.Config) error {
	logger := newLogger()
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := qabank.Open(cfg.StorePath, logger.With().Str("comp", "qabank").Logger())
	if err != nil {
		return err
	}
	defer store.Close()

	var gen answers.Generator
	if cfg.AI.Enabled {
		gemini, err := newGenerator(ctx, cfg, logger.With().Str("comp", "llm").Logger())
		if err != nil {
			logger.Warn().Err(err).Msg("answer generator unavailable, continuing without it")
		} else {
			gen = gemini
		}
	}

	launcher, err := session.NewLauncher(ctx, cfg.Headless)
	if err != nil {
		return err
	}
	defer launcher.Close()

	sess, err := launcher.NewSession(ctx, cfg.StorageState)
	if err != nil {
		return err
	}
	defer sess.Close(ctx)

	manager := recovery.NewManager(sess, recovery.NewDetector(recovery.DetectorConfig{}), recovery.ManagerConfig{
		Strategy: recovery.StrategyConfig{
			MaxRetries:               cfg.Retry.MaxRetries,
			InitialBackoff:           cfg.Retry.InitialBackoff,
			MaxBackoff:               cfg.Retry.MaxBackoff,
			Multiplier:               cfg.Retry.Multiplier,
			MaxConsecutiveRateLimits: cfg.Retry.MaxConsecutiveRateLimits,
		},
		CaptchaMaxWait:      cfg.Retry.CaptchaMaxWait,
		CaptchaBlockingWait: cfg.Retry.CaptchaBlockingWait,
	}, logger.With().Str("comp", "recovery").Logger())

	if cfg.Retry.CaptchaBlockingWait {
		go promptResume(ctx, manager)
	}

	filler := form.NewFiller(form.Config{MatchThreshold: cfg.Matching.FieldThreshold},
		logger.With().Str("comp", "form").Logger())
	cascade := answers.NewCascade(store, gen, cfg.Answers, answers.CascadeConfig{
		ReuseThreshold: cfg.Matching.ReuseThreshold,
		MinScore:       cfg.Matching.MinScore,
	}, logger.With().Str("comp", "answers").Logger())

	run := runner.New(sess, manager, filler, cascade, logger.With().Str("comp", "runner").Logger())
	report, err := run.Apply(ctx, runner.Application{
		URL:          runOpts.url,
		Title:        runOpts.title,
		Company:      runOpts.company,
		FormSelector: runOpts.formSelector,
		Answers:      cfg.Answers,
		ResumePath:   cfg.ResumePath,
	})
	if report != nil {
		printSummary(logger, report)
		if runOpts.reportPath != "" {
			if werr := writeReport(report, runOpts.reportPath); werr != nil {
				logger.Error().Err(werr).Msg("write report")
			}
		}
	}
	if err != nil {
		var failure *recovery.Failure
		if errors.As(err, &failure) && failure.Skippable() {
			logger.Warn().Str("reason", failure.Error()).Msg("item skipped")
			return nil
		}
		return err
	}

	if runOpts.saveState != "" {
		if err := sess.SaveState(ctx, runOpts.saveState); err != nil {
			logger.Error().Err(err).Msg("save state")
		} else {
			logger.Info().Str("path", runOpts.saveState).Msg("storage state saved")
		}
	}
	return nil
}

func newGenerator(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*llm.Gemini, error) {
	if cfg.AI.APIKey != "" {
		return llm.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model, logger)
	}
	return llm.NewGeminiFromEnv(ctx, logger)
}

// promptResume lets the operator resume a paused session after solving
// a verification challenge in the browser.
func promptResume(ctx context.Context, manager *recovery.Manager) {
	reader := bufio.NewReader(os.Stdin)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		if strings.TrimSpace(line) != "" {
			manager.RequestResume()
		}
	}
}

func printSummary(logger zerolog.Logger, report *runner.Report) {
	logger.Info().
		Str("report", report.ID).
		Bool("success", report.Success).
		Int("filled", report.Fill.Filled).
		Int("skipped", report.Fill.Skipped).
		Int("failed", report.Fill.Failed).
		Int("questions", len(report.Questions)).
		Msg("application finished")
}

func writeReport(report *runner.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	return report.WriteCSV(f)
}
