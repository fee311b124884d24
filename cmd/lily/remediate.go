package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lilybooks/lily/internal/config"
	"github.com/lilybooks/lily/internal/pipeline"
)

var remediateCmd = &cobra.Command{
	Use:   "remediate <slug>",
	Short: "Re-run only the chapters that failed validation",
	Long: `Re-run the pipeline against a persisted project. Completed chapters
are served from the project cache; chapters recorded as failing are
rewritten and re-assessed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := args[0]
		logger := newLogger()

		s, err := openProject(slug, logger)
		if err != nil {
			return err
		}

		// Require a previous run; remediation has nothing to do otherwise.
		var prev pipeline.State
		if err := s.LoadState(&prev); err != nil {
			return fmt.Errorf("project %s has no recorded runs", slug)
		}
		before := len(prev.FailedChapters)
		if before == 0 {
			fmt.Printf("project %s has no failing chapters\n", slug)
			return nil
		}

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		p, err := buildPipeline(cm.Get(), s, logger)
		if err != nil {
			return err
		}

		st := pipeline.NewState(slug, prev.BookID, "")
		if err := p.Run(cmd.Context(), st); err != nil {
			return err
		}

		remaining := len(st.FailedChapters)
		fmt.Printf("remediated %d of %d failing chapter(s)\n", before-remaining, before)
		if remaining > 0 {
			fmt.Printf("still failing: %v\n", st.FailedChapters)
		}
		return nil
	},
}
