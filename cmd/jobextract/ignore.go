package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-extractor/internal/config"
	"github.com/jonathan/job-extractor/internal/db"
)

var ignoreReason string

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage URLs excluded from every batch",
	Long:  `Add, list and remove URLs on the stored ignore list. Requires DATABASE_URL.`,
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <url>...",
	Short: "Ignore one or more URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIgnoreAdd,
}

var ignoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ignored URLs",
	Args:  cobra.NoArgs,
	RunE:  runIgnoreList,
}

var ignoreRemoveCmd = &cobra.Command{
	Use:   "remove <url>...",
	Short: "Stop ignoring one or more URLs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIgnoreRemove,
}

func init() {
	ignoreAddCmd.Flags().StringVar(&ignoreReason, "reason", "", "Why the URL is ignored")
	ignoreCmd.AddCommand(ignoreAddCmd, ignoreListCmd, ignoreRemoveCmd)
	rootCmd.AddCommand(ignoreCmd)
}

// openStore connects to the configured database only.
func openStore(ctx context.Context) (*db.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if !cfg.DB.Enabled() {
		return nil, errNoDatabase
	}
	database, err := db.Connect(ctx, cfg.DB.URL)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func runIgnoreAdd(cmd *cobra.Command, args []string) error {
	database, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	out := cmd.OutOrStdout()
	for _, raw := range args {
		ig, err := database.AddIgnoredURL(cmd.Context(), raw, ignoreReason)
		if errors.Is(err, db.ErrAlreadyIgnored) {
			fmt.Fprintf(out, "already ignored: %s\n", raw)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "ignored: %s\n", ig.URL)
	}
	return nil
}

func runIgnoreList(cmd *cobra.Command, _ []string) error {
	database, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	ignored, err := database.ListIgnoredURLs(cmd.Context())
	if err != nil {
		return err
	}
	if len(ignored) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No ignored URLs.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tREASON\tADDED")
	for _, ig := range ignored {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ig.URL, ig.Reason, ig.CreatedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func runIgnoreRemove(cmd *cobra.Command, args []string) error {
	database, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	out := cmd.OutOrStdout()
	for _, raw := range args {
		removed, err := database.RemoveIgnoredURL(cmd.Context(), raw)
		if err != nil {
			return err
		}
		if removed {
			fmt.Fprintf(out, "removed: %s\n", raw)
		} else {
			fmt.Fprintf(out, "not ignored: %s\n", raw)
		}
	}
	return nil
}
