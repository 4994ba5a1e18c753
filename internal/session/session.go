// Package session provides the authenticated LinkedIn side-channel used to
// confirm the application mode of a posting.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/job-extractor/internal/fetch"
	"github.com/jonathan/job-extractor/internal/locate"
	"github.com/jonathan/job-extractor/internal/types"
)

var (
	// ErrMissingCredentials is returned when no username or password is configured.
	ErrMissingCredentials = errors.New("linkedin credentials not configured")
	// ErrCheckpoint is returned when login lands on a security checkpoint.
	ErrCheckpoint = errors.New("linkedin login requires a security checkpoint")
	// ErrSessionExpired is returned when an authenticated page redirects to sign-in.
	ErrSessionExpired = errors.New("linkedin session expired")
)

// Credentials for the LinkedIn account.
type Credentials struct {
	Username string
	Password string
}

// Valid reports whether both parts are set.
func (c Credentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// Driver is the browser session behind LinkedIn. Implementations must be
// safe for concurrent use.
type Driver interface {
	Login(ctx context.Context, creds Credentials) error
	// Page loads url and returns its HTML and the final location.
	Page(ctx context.Context, url string) (html, location string, err error)
	Close()
}

// LinkedIn logs in at most once, however many lookups run concurrently, and
// reads the apply-button label from the signed-in job view.
type LinkedIn struct {
	driver  Driver
	creds   Credentials
	locator *locate.Locator

	login    singleflight.Group
	mu       sync.Mutex
	loggedIn bool
	logins   int
}

// New creates the side-channel. locator may be nil for the default selectors.
func New(driver Driver, creds Credentials, locator *locate.Locator) *LinkedIn {
	if locator == nil {
		locator = locate.New(locate.DefaultSelectors())
	}
	return &LinkedIn{driver: driver, creds: creds, locator: locator}
}

// Logins returns how many login attempts have been made.
func (l *LinkedIn) Logins() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logins
}

func (l *LinkedIn) isLoggedIn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loggedIn
}

func (l *LinkedIn) ensureLogin(ctx context.Context) error {
	if l.isLoggedIn() {
		return nil
	}
	if !l.creds.Valid() {
		return ErrMissingCredentials
	}

	_, err, shared := l.login.Do("login", func() (interface{}, error) {
		if l.isLoggedIn() {
			return nil, nil
		}
		l.mu.Lock()
		l.logins++
		l.mu.Unlock()

		log.Info().Str("username", l.creds.Username).Msg("logging in to linkedin")
		if err := l.driver.Login(ctx, l.creds); err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.loggedIn = true
		l.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("linkedin login: %w", err)
	}
	if shared {
		log.Debug().Msg("joined in-flight linkedin login")
	}
	return nil
}

func (l *LinkedIn) invalidate() {
	l.mu.Lock()
	l.loggedIn = false
	l.mu.Unlock()
}

// ApplicationLabel implements extractor.SideChannel. It returns the apply
// label found on the signed-in page, or "" when none is recognised.
func (l *LinkedIn) ApplicationLabel(ctx context.Context, url string) (string, error) {
	if err := l.ensureLogin(ctx); err != nil {
		return "", err
	}

	html, location, err := l.driver.Page(ctx, url)
	if err != nil {
		return "", fmt.Errorf("load %s: %w", url, err)
	}
	if fetch.IsAuthWall(location) {
		l.invalidate()
		return "", ErrSessionExpired
	}

	doc := &fetch.Document{URL: url, HTML: html, Strategy: "session", Rendered: true}
	app := l.locator.Application(doc)
	if app.Mode == types.ModeUnknown || app.Confidence != types.ConfidenceConfirmed {
		log.Debug().Str("url", url).Msg("no apply button on signed-in page")
		return "", nil
	}
	return app.Label, nil
}

// Close releases the browser session.
func (l *LinkedIn) Close() {
	l.driver.Close()
}
