package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/polzovatel/easy-apply-agent/internal/qabank"
)

var questionsOpts struct {
	limit  int
	export string
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "list or export the learned question bank",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger()
		store, err := qabank.Open(cfg.StorePath, logger.With().Str("comp", "qabank").Logger())
		if err != nil {
			return err
		}
		defer store.Close()

		if questionsOpts.export != "" {
			f, err := os.Create(questionsOpts.export)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer f.Close()
			if err := store.ExportCSV(f, questionsOpts.limit); err != nil {
				return err
			}
			logger.Info().Str("path", questionsOpts.export).Msg("question bank exported")
			return nil
		}

		entries, err := store.All(questionsOpts.limit)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("[%d] used=%d ok=%d  %s\n     -> %s\n", e.ID, e.TimesUsed, e.SuccessCount, e.Question, e.Answer)
		}
		return nil
	},
}

func init() {
	questionsCmd.Flags().IntVar(&questionsOpts.limit, "limit", 100, "maximum entries to list or export")
	questionsCmd.Flags().StringVar(&questionsOpts.export, "export", "", "export to CSV file instead of listing")
	rootCmd.AddCommand(questionsCmd)
}
