package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lilybooks/lily/internal/book"
	"github.com/lilybooks/lily/internal/config"
	"github.com/lilybooks/lily/internal/pipeline"
	"github.com/lilybooks/lily/internal/store"
)

var (
	runBook     string
	runChapters []int
	runTitle    string
	runAuthor   string
	runSource   string
)

var runCmd = &cobra.Command{
	Use:   "run <slug>",
	Short: "Run the modernization pipeline for a project",
	Long: `Run the full pipeline for one project. The first run needs --book to
point at the source text; later runs resume from the persisted project
and only redo the work that is missing.

Examples:
  lily run pride-and-prejudice --book pg1342.txt --title "Pride and Prejudice" --author "Jane Austen"
  lily run pride-and-prejudice --chapters 1,2,3
  lily run pride-and-prejudice    # resume / re-run, no backend calls if complete`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slug := args[0]
		logger := newLogger()

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		s, err := openProject(slug, logger)
		if err != nil {
			return err
		}
		p, err := buildPipeline(cm.Get(), s, logger)
		if err != nil {
			return err
		}

		// Long runs pick up config edits on the fly; the pipeline is
		// already wired, so new settings apply from the next run.
		cm.OnChange(func(*config.Config) {
			logger.Info("configuration changed, new settings apply on the next run")
		})
		cm.WatchConfig()

		st := pipeline.NewState(slug, uuid.New().String(), runBook)
		st.Filter = runChapters

		// Resume keeps the original book id.
		var prev pipeline.State
		if err := s.LoadState(&prev); err == nil && prev.BookID != "" {
			st.BookID = prev.BookID
		} else if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		if runTitle != "" || runAuthor != "" || runSource != "" {
			st.Meta = &book.Metadata{Title: runTitle, Author: runAuthor, PublicDomainSource: runSource}
		}

		if err := p.Run(cmd.Context(), st); err != nil {
			return err
		}

		fmt.Printf("project %s: %d chapter(s) processed\n", slug, st.ChapterCount)
		if st.ValidateOK {
			fmt.Println("all chapters passed validation")
		} else {
			fmt.Printf("failing chapters: %v (see `lily status %s`)\n", st.FailedChapters, slug)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runBook, "book", "", "path to the source text (required on first run)")
	runCmd.Flags().IntSliceVar(&runChapters, "chapters", nil, "restrict the run to these chapter numbers")
	runCmd.Flags().StringVar(&runTitle, "title", "", "book title for the delivered metadata")
	runCmd.Flags().StringVar(&runAuthor, "author", "", "book author for the delivered metadata")
	runCmd.Flags().StringVar(&runSource, "source", "", "public-domain source attribution")
}
