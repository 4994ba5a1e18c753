package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/config"
	"github.com/jonathan/job-extractor/internal/db"
	"github.com/jonathan/job-extractor/internal/extractor"
	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/llm"
	"github.com/jonathan/job-extractor/internal/locate"
	"github.com/jonathan/job-extractor/internal/scoring"
	"github.com/jonathan/job-extractor/internal/session"
)

// errNoDatabase is returned by commands that need DATABASE_URL.
var errNoDatabase = errors.New("DATABASE_URL environment variable is required")

// wireOptions are command-line overrides applied on top of the config.
type wireOptions struct {
	noBrowser   bool
	sideChannel bool
	requireDB   bool
}

// app is the wired object graph shared by the commands.
type app struct {
	cfg       *config.AppConfig
	db        *db.DB // nil without DATABASE_URL
	locator   *locate.Locator
	extractor *extractor.Extractor

	closers []func()
}

func newApp(ctx context.Context, cfg *config.AppConfig, opts wireOptions) (*app, error) {
	a := &app{cfg: cfg}

	if err := a.connectDB(ctx, opts.requireDB); err != nil {
		return nil, err
	}

	sel := locate.DefaultSelectors()
	if cfg.Fetch.SelectorsFile != "" {
		loaded, err := locate.LoadSelectors(cfg.Fetch.SelectorsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		sel = loaded
	}
	a.locator = locate.New(sel)

	useBrowser := cfg.Fetch.UseBrowser && !opts.noBrowser
	exCfg := extractor.Config{SideChannelWait: cfg.Session.Wait}
	if cfg.Session.Enabled || opts.sideChannel {
		creds := session.Credentials{Username: cfg.Session.Username, Password: cfg.Session.Password}
		if !creds.Valid() {
			a.Close()
			return nil, fmt.Errorf("side-channel needs LINKEDIN_USERNAME and LINKEDIN_PASSWORD: %w", session.ErrMissingCredentials)
		}
		li := session.New(session.NewChromeDriver(browserOptions(cfg.Fetch)), creds, a.locator)
		a.closers = append(a.closers, li.Close)
		exCfg.SideChannel = li
	}

	a.extractor = extractor.New(buildFetcher(cfg.Fetch, useBrowser, a.db), a.locator, exCfg)

	log.Debug().
		Bool("browser", useBrowser).
		Bool("side_channel", exCfg.SideChannel != nil).
		Bool("database", a.db != nil).
		Msg("extractor wired")
	return a, nil
}

func (a *app) connectDB(ctx context.Context, required bool) error {
	if !a.cfg.DB.Enabled() {
		if required {
			return errNoDatabase
		}
		return nil
	}
	database, err := db.Connect(ctx, a.cfg.DB.URL)
	if err != nil {
		return err
	}
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return err
	}
	a.db = database
	a.closers = append(a.closers, database.Close)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func browserOptions(cfg config.FetchConfig) fetch.BrowserOptions {
	return fetch.BrowserOptions{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		ExecPath:  cfg.ChromePath,
	}
}

// buildFetcher assembles the strategy chain, most capable first. The page
// cache wraps the chain when a database is available.
func buildFetcher(cfg config.FetchConfig, useBrowser bool, database *db.DB) fetch.Fetcher {
	opts := &fetch.Options{
		Timeout:        cfg.Timeout,
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.AcceptLanguage,
	}

	var strategies []fetch.Strategy
	if useBrowser {
		strategies = append(strategies, fetch.NewBrowserStrategy(browserOptions(cfg)))
	}
	strategies = append(strategies, fetch.NewHTTPStrategy(opts), fetch.NewTextStrategy(opts))

	chain := fetch.NewChain(fetch.NewPacer(cfg.MinDelay, cfg.MaxDelay), strategies...)
	if database != nil && cfg.CacheTTL > 0 {
		return fetch.NewCachedFetcher(chain, database, cfg.CacheTTL)
	}
	return chain
}

// newScorer builds the LLM fit scorer. The returned func closes the client.
func newScorer(ctx context.Context, cfg *config.AppConfig, profilePath string) (scoring.Scorer, func(), error) {
	profile, err := cfg.LoadProfile(profilePath)
	if err != nil {
		return nil, nil, err
	}

	provider := llm.Provider(cfg.LLM.Provider)
	apiKey := cfg.LLM.APIKey()
	if apiKey == "" {
		return nil, nil, fmt.Errorf("no API key configured for LLM provider %q", provider)
	}

	llmCfg := llm.ConfigFor(provider)
	if provider == llm.ProviderOpenAI && cfg.LLM.OpenAIBaseURL != "" {
		llmCfg.BaseURL = cfg.LLM.OpenAIBaseURL
	}

	client, err := llm.NewClient(ctx, llmCfg, apiKey)
	if err != nil {
		return nil, nil, err
	}
	return scoring.NewLLMScorer(client, profile), func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close LLM client")
		}
	}, nil
}
