package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-extractor/internal/config"
	"github.com/jonathan/job-extractor/internal/observability"
	"github.com/jonathan/job-extractor/internal/scoring"
	"github.com/jonathan/job-extractor/internal/types"
)

var (
	scoreProfile     string
	scoreBatchID     string
	scoreFile        string
	scoreExclude     string
	scoreOut         string
	scoreNoBrowser   bool
	scoreSideChannel bool
)

var scoreCmd = &cobra.Command{
	Use:   "score [url...]",
	Short: "Score job postings against a profile",
	Long: `Extract job postings, then ask the configured LLM provider to rate how well
each one fits the reference profile. With --batch, a stored batch is scored
instead of extracting again, and the scores are saved with it.

Results are written as JSON; --verbose also prints a summary per posting.`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreProfile, "profile", "p", "", "Reference profile file (default PROFILE_FILE)")
	scoreCmd.Flags().StringVar(&scoreBatchID, "batch", "", "Score a stored batch by ID (requires DATABASE_URL)")
	scoreCmd.Flags().StringVarP(&scoreFile, "file", "f", "", "File with one URL per line (- for stdin)")
	scoreCmd.Flags().StringVar(&scoreExclude, "exclude-file", "", "File with URLs to skip, one per line")
	scoreCmd.Flags().StringVarP(&scoreOut, "out", "o", "", "Output file (default stdout)")
	scoreCmd.Flags().BoolVar(&scoreNoBrowser, "no-browser", false, "Skip the headless browser strategy")
	scoreCmd.Flags().BoolVar(&scoreSideChannel, "side-channel", false, "Look up the apply mode through a signed-in session")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var batchID uuid.UUID
	if scoreBatchID != "" {
		if batchID, err = uuid.Parse(scoreBatchID); err != nil {
			return fmt.Errorf("invalid batch ID %q: %w", scoreBatchID, err)
		}
	}

	scorer, closeScorer, err := newScorer(ctx, cfg, scoreProfile)
	if err != nil {
		return err
	}
	defer closeScorer()

	a, err := newApp(ctx, cfg, wireOptions{
		noBrowser:   scoreNoBrowser,
		sideChannel: scoreSideChannel,
		requireDB:   batchID != uuid.Nil,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	var records []types.JobPostingRecord
	if batchID != uuid.Nil {
		stored, err := a.db.GetBatch(ctx, batchID)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("batch %s not found", batchID)
		}
		records = stored.Records
	} else {
		urls, err := collectURLs(ctx, a.db, args, scoreFile, scoreExclude, cmd.InOrStdin())
		if err != nil {
			return err
		}
		batchID, records = a.runBatch(ctx, urls)
	}

	results := scoring.ScoreBatch(ctx, scorer, records, scoring.BatchOptions{
		Progress: func(current, total int, message string) {
			log.Debug().Int("current", current).Int("total", total).Msg(message)
		},
	})

	if a.db != nil {
		if err := a.db.SaveBatchScores(context.WithoutCancel(ctx), batchID, results); err != nil {
			log.Warn().Err(err).Msg("failed to save scores")
		}
	}

	if verbose {
		printer := observability.NewPrinter(cmd.ErrOrStderr())
		for _, res := range results {
			printer.PrintFitScore(res)
		}
	}

	return writeOutput(cmd.OutOrStdout(), scoreOut, func(w io.Writer) error {
		return writeJSON(w, results)
	})
}
