package fetch

import (
	"context"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive requests to the same host by at least MinDelay plus
// a random jitter of up to MaxDelay-MinDelay. The first request to a host is
// not delayed.
type Pacer struct {
	mu    sync.Mutex
	hosts map[string]*hostPace

	minDelay time.Duration
	jitter   time.Duration
	randN    func(int64) int64
}

type hostPace struct {
	limiter *rate.Limiter
	used    bool
}

// NewPacer creates a pacer. A zero minDelay and maxDelay disables pacing.
func NewPacer(minDelay, maxDelay time.Duration) *Pacer {
	if minDelay < 0 {
		minDelay = 0
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &Pacer{
		hosts:    make(map[string]*hostPace),
		minDelay: minDelay,
		jitter:   maxDelay - minDelay,
		randN:    rand.Int64N,
	}
}

func (p *Pacer) paceFor(host string) (*hostPace, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	hp, ok := p.hosts[host]
	if !ok {
		limit := rate.Inf
		if p.minDelay > 0 {
			limit = rate.Every(p.minDelay)
		}
		hp = &hostPace{limiter: rate.NewLimiter(limit, 1)}
		p.hosts[host] = hp
	}
	first := !hp.used
	hp.used = true
	return hp, first
}

// Wait blocks until a request to rawURL's host may proceed.
func (p *Pacer) Wait(ctx context.Context, rawURL string) error {
	if p == nil || (p.minDelay == 0 && p.jitter == 0) {
		return nil
	}

	host := "_"
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}

	hp, first := p.paceFor(host)
	if err := hp.limiter.Wait(ctx); err != nil {
		return err
	}
	if first || p.jitter <= 0 {
		return nil
	}

	timer := time.NewTimer(time.Duration(p.randN(int64(p.jitter) + 1)))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
