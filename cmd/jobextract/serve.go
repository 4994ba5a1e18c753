package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jonathan/job-extractor/internal/config"
	"github.com/jonathan/job-extractor/internal/server"
)

var (
	servePort      int
	serveProfile   string
	serveNoBrowser bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web form server",
	Long: `Start an HTTP server with a form for pasting job URLs. Batches run in the
background with live progress, results show as a table and download as CSV.

Batches and the ignore list are stored when DATABASE_URL is set. Fit scoring is
offered when a profile and an API key for the LLM provider are configured.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default HTTP_PORT)")
	serveCmd.Flags().StringVarP(&serveProfile, "profile", "p", "", "Reference profile file for fit scoring (default PROFILE_FILE)")
	serveCmd.Flags().BoolVar(&serveNoBrowser, "no-browser", false, "Skip the headless browser strategy")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.HTTP.Port = servePort
	}

	a, err := newApp(ctx, cfg, wireOptions{noBrowser: serveNoBrowser})
	if err != nil {
		return err
	}
	defer a.Close()

	deps := server.Deps{Runner: a.extractor}
	if a.db != nil {
		deps.Store = a.db
	} else {
		log.Warn().Msg("DATABASE_URL not set: batches are kept in memory only")
	}

	if serveProfile != "" || cfg.ProfileFile != "" {
		scorer, closeScorer, err := newScorer(ctx, cfg, serveProfile)
		if err != nil {
			return fmt.Errorf("fit scoring: %w", err)
		}
		defer closeScorer()
		deps.Scorer = scorer
	} else {
		log.Info().Msg("no profile configured: fit scoring disabled")
	}

	srv, err := server.New(server.Config{
		Addr:                cfg.HTTP.Addr(),
		DescriptionMaxChars: cfg.DescriptionMaxChars,
		RateLimitPerMinute:  cfg.HTTP.RateLimit,
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Start(ctx)
}
