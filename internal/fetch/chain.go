package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Attempt records one strategy's failed try at a URL.
type Attempt struct {
	Strategy string
	Err      error
	Duration time.Duration
}

// FetchError is returned when every strategy in the chain failed. Attempts
// lists what was tried, in order.
//
//nolint:revive // FetchError reads better than fetch.Err at call sites
type FetchError struct {
	URL      string
	Attempts []Attempt
	Cause    error // set when the chain did not get to try any strategy
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch failed for %s: %v", e.URL, e.Cause)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Strategy, a.Err))
	}
	return fmt.Sprintf("all fetch strategies failed for %s (%s)", e.URL, strings.Join(parts, "; "))
}

// Unwrap exposes the pre-flight cause or every attempt's error to errors.Is/As.
func (e *FetchError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Cause}
	}
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Summary is a short message suitable for a tabular error annotation.
func (e *FetchError) Summary() string {
	if e.Cause != nil {
		var fe *Error
		if errors.As(e.Cause, &fe) {
			return fe.Message
		}
		return e.Cause.Error()
	}
	if len(e.Attempts) == 0 {
		return "no fetch strategies configured"
	}
	last := e.Attempts[len(e.Attempts)-1]
	var fe *Error
	if errors.As(last.Err, &fe) {
		return fmt.Sprintf("all fetch strategies failed (last: %s)", fe.Message)
	}
	return "all fetch strategies failed"
}

// Chain tries its strategies in order and returns the first document obtained.
type Chain struct {
	strategies []Strategy
	pacer      *Pacer
}

// NewChain creates a fetch chain. A nil pacer disables request pacing.
func NewChain(pacer *Pacer, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, pacer: pacer}
}

// Strategies returns the names of the configured strategies in order.
func (c *Chain) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Fetch implements Fetcher. The error is always a *FetchError.
func (c *Chain) Fetch(ctx context.Context, urlStr string) (*Document, error) {
	if err := ValidateURL(urlStr); err != nil {
		return nil, &FetchError{URL: urlStr, Cause: err}
	}

	fetchErr := &FetchError{URL: urlStr}
	for _, s := range c.strategies {
		// every attempt hits the same host, so fallbacks are paced too
		if err := c.pacer.Wait(ctx, urlStr); err != nil {
			if len(fetchErr.Attempts) == 0 {
				fetchErr.Cause = err
			} else {
				fetchErr.Attempts = append(fetchErr.Attempts, Attempt{Strategy: s.Name(), Err: err})
			}
			break
		}
		start := time.Now()
		doc, err := s.Fetch(ctx, urlStr)
		if err == nil && doc != nil {
			log.Debug().Str("url", urlStr).Str("strategy", s.Name()).Dur("took", time.Since(start)).Msg("fetched")
			return doc, nil
		}
		if err == nil {
			err = errors.New("strategy returned no document")
		}
		fetchErr.Attempts = append(fetchErr.Attempts, Attempt{
			Strategy: s.Name(),
			Err:      err,
			Duration: time.Since(start),
		})
		log.Warn().Err(err).Str("url", urlStr).Str("strategy", s.Name()).Msg("fetch strategy failed")

		if ctx.Err() != nil {
			break
		}
	}
	return nil, fetchErr
}
