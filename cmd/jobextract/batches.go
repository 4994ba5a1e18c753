package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-extractor/internal/config"
	"github.com/jonathan/job-extractor/internal/export"
)

var (
	batchesLimit int
	batchesOut   string
	pruneMaxAge  time.Duration
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "List stored batches",
	Long:  `List the most recent stored batches. Requires DATABASE_URL.`,
	Args:  cobra.NoArgs,
	RunE:  runBatchesList,
}

var batchesExportCmd = &cobra.Command{
	Use:   "export <batch-id>",
	Short: "Write a stored batch as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runBatchesExport,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the fetched-page cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cached pages older than --max-age",
	Args:  cobra.NoArgs,
	RunE:  runCachePrune,
}

func init() {
	batchesCmd.Flags().IntVar(&batchesLimit, "limit", 20, "Number of batches to list")
	batchesExportCmd.Flags().StringVarP(&batchesOut, "out", "o", "", "Output file (default stdout)")
	batchesCmd.AddCommand(batchesExportCmd)
	rootCmd.AddCommand(batchesCmd)

	cachePruneCmd.Flags().DurationVar(&pruneMaxAge, "max-age", 0, "Maximum page age to keep (default FETCH_CACHE_TTL)")
	cacheCmd.AddCommand(cachePruneCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runBatchesList(cmd *cobra.Command, _ []string) error {
	database, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	list, err := database.ListBatches(cmd.Context(), batchesLimit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored batches.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tURLS\tFAILED\tCREATED")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			b.ID, b.Status, b.URLCount, b.FailedCount, b.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runBatchesExport(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid batch ID %q: %w", args[0], err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	database, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	stored, err := database.GetBatch(cmd.Context(), id)
	if err != nil {
		return err
	}
	if stored == nil {
		return fmt.Errorf("batch %s not found", id)
	}

	return writeOutput(cmd.OutOrStdout(), batchesOut, func(w io.Writer) error {
		return export.WriteCSV(w, stored.Records, export.Options{DescriptionMaxChars: cfg.DescriptionMaxChars})
	})
}

func runCachePrune(cmd *cobra.Command, _ []string) error {
	maxAge := pruneMaxAge
	if maxAge <= 0 {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		maxAge = cfg.Fetch.CacheTTL
	}
	if maxAge <= 0 {
		return fmt.Errorf("no max age: pass --max-age or set FETCH_CACHE_TTL")
	}

	database, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := database.PrunePages(cmd.Context(), maxAge)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d cached pages older than %s\n", n, maxAge)
	return nil
}
