// Package locate finds job-posting fields in a fetched document. Each field
// has a ranked chain of independent strategies; the first strategy that yields
// an acceptable value wins and the rest are skipped.
package locate

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jonathan/job-extractor/internal/fetch"
)

// Strategy extracts one field from a document. A strategy returns "" with a
// nil error when the field is simply not there; an error means an internal
// fault, which the chain logs and treats as not found.
type Strategy interface {
	Name() string
	Locate(doc *fetch.Document) (string, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc struct {
	name string
	fn   func(doc *fetch.Document) (string, error)
}

// NewStrategy wraps fn as a named strategy.
func NewStrategy(name string, fn func(doc *fetch.Document) (string, error)) StrategyFunc {
	return StrategyFunc{name: name, fn: fn}
}

// Name implements Strategy.
func (s StrategyFunc) Name() string { return s.name }

// Locate implements Strategy.
func (s StrategyFunc) Locate(doc *fetch.Document) (string, error) { return s.fn(doc) }

// Result is the outcome of running a chain.
type Result struct {
	Value    string
	Strategy string
	Tier     int // 1-based position of the winning strategy; 0 when not found
	Found    bool
}

// Chain is the ordered strategy list for one field.
type Chain struct {
	Field      string
	Strategies []Strategy
	// Accept rejects unusable candidates, sending the chain on to the next
	// strategy. Nil accepts any non-blank value.
	Accept func(value string) bool
}

// Run evaluates the strategies in priority order.
func (c Chain) Run(doc *fetch.Document) Result {
	for i, s := range c.Strategies {
		value, err := safeLocate(s, doc)
		if err != nil {
			log.Warn().Err(err).Str("field", c.Field).Str("strategy", s.Name()).Msg("locator strategy failed")
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if c.Accept != nil && !c.Accept(value) {
			log.Debug().Str("field", c.Field).Str("strategy", s.Name()).Int("len", len(value)).Msg("candidate rejected")
			continue
		}
		return Result{Value: value, Strategy: s.Name(), Tier: i + 1, Found: true}
	}

	log.Debug().Str("field", c.Field).Str("url", doc.URL).Msg("field not found")
	return Result{}
}

func safeLocate(s Strategy, doc *fetch.Document) (value string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
	}()
	return s.Locate(doc)
}
