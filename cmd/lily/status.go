package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lilybooks/lily/internal/pipeline"
)

var statusCmd = &cobra.Command{
	Use:   "status <slug>",
	Short: "Show a project's pipeline progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		s, err := openProject(args[0], logger)
		if err != nil {
			return err
		}

		report, err := pipeline.Status(s)
		if err != nil {
			return err
		}
		st := report.State

		flag := func(ok bool) string {
			if ok {
				return "ok"
			}
			return "pending"
		}

		fmt.Printf("project:    %s (book %s)\n", st.Slug, st.BookID)
		fmt.Printf("updated:    %s\n", st.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("ingest:     %s\n", flag(st.IngestOK))
		fmt.Printf("split:      %s (%d chapters)\n", flag(st.SplitOK), st.ChapterCount)
		fmt.Printf("transform:  %s (%d/%d rewritten)\n", flag(st.TransformOK), report.ChaptersRewritten, st.ChapterCount)
		fmt.Printf("validate:   %s (%d/%d assessed)\n", flag(st.ValidateOK), report.ChaptersValidated, st.ChapterCount)
		fmt.Printf("deliver:    %s\n", flag(st.DeliverOK))

		if len(report.Failures) > 0 {
			fmt.Println("\nfailures:")
			for _, rec := range report.Failures {
				fmt.Printf("  chapter %d [%s]: %s\n", rec.Chapter, rec.Stage, rec.Reason)
			}
		}
		fmt.Printf("\n%s\n", report.Recommendation)
		return nil
	},
}
