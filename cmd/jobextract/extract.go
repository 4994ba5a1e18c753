package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-extractor/internal/config"
	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/export"
	"github.com/jonathan/job-extractor/internal/extractor"
	"github.com/jonathan/job-extractor/internal/observability"
	"github.com/jonathan/job-extractor/internal/types"
)

var (
	extractFile        string
	extractExcludeFile string
	extractOut         string
	extractJSON        bool
	extractNoBrowser   bool
	extractSideChannel bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [url...]",
	Short: "Extract job postings to CSV or JSON",
	Long: `Extract one record per job posting URL. URLs come from the arguments, --file,
or stdin, one per line. Blank lines and duplicates are dropped and anything in
--exclude-file or the stored ignore list is skipped.

Press Ctrl+C to stop: the URL in flight finishes and the rest are reported as
cancelled.`,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "File with one URL per line (- for stdin)")
	extractCmd.Flags().StringVar(&extractExcludeFile, "exclude-file", "", "File with URLs to skip, one per line")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Output file (default stdout)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "Write full records as JSON instead of CSV")
	extractCmd.Flags().BoolVar(&extractNoBrowser, "no-browser", false, "Skip the headless browser strategy")
	extractCmd.Flags().BoolVar(&extractSideChannel, "side-channel", false, "Look up the apply mode through a signed-in session")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, wireOptions{noBrowser: extractNoBrowser, sideChannel: extractSideChannel})
	if err != nil {
		return err
	}
	defer a.Close()

	urls, err := collectURLs(ctx, a.db, args, extractFile, extractExcludeFile, cmd.InOrStdin())
	if err != nil {
		return err
	}

	_, records := a.runBatch(ctx, urls)

	if verbose {
		printer := observability.NewPrinter(cmd.ErrOrStderr())
		for _, rec := range records {
			printer.PrintRecord(rec)
		}
		printer.PrintBatchSummary(records)
	}

	return writeOutput(cmd.OutOrStdout(), extractOut, func(w io.Writer) error {
		if extractJSON {
			return writeJSON(w, records)
		}
		return export.WriteCSV(w, records, export.Options{DescriptionMaxChars: cfg.DescriptionMaxChars})
	})
}

// runBatch extracts urls and records the batch in the database when one is
// connected. Store failures are logged, never fatal.
func (a *app) runBatch(ctx context.Context, urls []string) (uuid.UUID, []types.JobPostingRecord) {
	b := extractor.NewBatch(urls, nil)

	if a.db != nil {
		if err := a.db.CreateBatch(ctx, b.ID, len(urls)); err != nil {
			log.Warn().Err(err).Msg("failed to record batch")
		}
	}

	records := a.extractor.RunBatch(ctx, b)

	if a.db != nil {
		status := db.BatchCompleted
		if ctx.Err() != nil {
			status = db.BatchCancelled
		}
		if err := a.db.CompleteBatch(context.WithoutCancel(ctx), b.ID, status, records); err != nil {
			log.Warn().Err(err).Msg("failed to save batch")
		} else {
			log.Info().Str("batch_id", b.ID.String()).Str("status", status).Msg("batch saved")
		}
	}
	return b.ID, records
}

// writeOutput writes to path, or to stdout when path is empty.
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().Str("path", path).Msg("output written")
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
