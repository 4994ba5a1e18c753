package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name  string
	doc   *Document
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Fetch(_ context.Context, url string) (*Document, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Document{
		URL:       url,
		HTML:      s.doc.HTML,
		Text:      s.doc.Text,
		Strategy:  s.name,
		Rendered:  s.doc.Rendered,
		FetchedAt: s.doc.FetchedAt,
	}, nil
}

const jobURL = "https://www.linkedin.com/jobs/view/123/"

func TestChain_FirstSuccessWins(t *testing.T) {
	browser := &stubStrategy{name: "browser", doc: &Document{HTML: "rendered"}}
	plain := &stubStrategy{name: "http", doc: &Document{HTML: "plain"}}

	doc, err := NewChain(nil, browser, plain).Fetch(context.Background(), jobURL)
	require.NoError(t, err)

	assert.Equal(t, "rendered", doc.HTML)
	assert.Equal(t, "browser", doc.Strategy)
	assert.Equal(t, 1, browser.calls)
	assert.Equal(t, 0, plain.calls)
}

func TestChain_FallsThroughOnFailure(t *testing.T) {
	browser := &stubStrategy{name: "browser", err: errors.New("chrome not found")}
	plain := &stubStrategy{name: "http", err: &Error{URL: jobURL, Message: "HTTP status 999", StatusCode: 999}}
	text := &stubStrategy{name: "text", doc: &Document{HTML: "<p>x</p>", Text: "x"}}

	doc, err := NewChain(nil, browser, plain, text).Fetch(context.Background(), jobURL)
	require.NoError(t, err)
	assert.Equal(t, "text", doc.Strategy)
	assert.Equal(t, 1, browser.calls)
	assert.Equal(t, 1, plain.calls)
}

func TestChain_AllFailReturnsAttemptLog(t *testing.T) {
	browser := &stubStrategy{name: "browser", err: errors.New("timeout")}
	plain := &stubStrategy{name: "http", err: &Error{URL: jobURL, Message: "HTTP status 429", StatusCode: 429}}

	chain := NewChain(nil, browser, plain)
	assert.Equal(t, []string{"browser", "http"}, chain.Strategies())

	_, err := chain.Fetch(context.Background(), jobURL)
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Len(t, fetchErr.Attempts, 2)
	assert.Equal(t, "browser", fetchErr.Attempts[0].Strategy)
	assert.Equal(t, "http", fetchErr.Attempts[1].Strategy)
	assert.Contains(t, err.Error(), "browser: timeout")
	assert.Equal(t, "all fetch strategies failed (last: HTTP status 429)", fetchErr.Summary())

	var strategyErr *Error
	require.ErrorAs(t, err, &strategyErr)
	assert.Equal(t, 429, strategyErr.StatusCode)
}

func TestChain_InvalidURLSkipsStrategies(t *testing.T) {
	browser := &stubStrategy{name: "browser", doc: &Document{}}

	_, err := NewChain(nil, browser).Fetch(context.Background(), "::not a url")
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, fetchErr.Attempts)
	assert.Equal(t, "invalid URL", fetchErr.Summary())
	assert.Equal(t, 0, browser.calls)
}

func TestChain_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubStrategy{name: "browser", err: errors.New("boom")}
	second := &stubStrategy{name: "http", doc: &Document{}}

	cancel()
	_, err := NewChain(NewPacer(0, 0), first, second).Fetch(ctx, jobURL)
	require.Error(t, err)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestChain_PacesFallbackStrategies(t *testing.T) {
	var mu sync.Mutex
	var hits []time.Time
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	minDelay := 150 * time.Millisecond
	chain := NewChain(NewPacer(minDelay, minDelay), NewHTTPStrategy(nil), NewTextStrategy(nil))

	_, err := chain.Fetch(context.Background(), server.URL)
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, hits, 2)
	assert.GreaterOrEqual(t, hits[1].Sub(hits[0]), minDelay-20*time.Millisecond)
}

func TestChain_PacerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &stubStrategy{name: "browser", err: errors.New("boom")}
	second := &stubStrategy{name: "http", doc: &Document{}}
	pacer := NewPacer(time.Hour, time.Hour)
	require.NoError(t, pacer.Wait(ctx, jobURL))

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := NewChain(pacer, first, second).Fetch(ctx, jobURL)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, first.calls)
	assert.Equal(t, 0, second.calls)
}

func TestPacer_FirstRequestNotDelayed(t *testing.T) {
	p := NewPacer(200*time.Millisecond, 300*time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), jobURL))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacer_SpacesSameHost(t *testing.T) {
	p := NewPacer(40*time.Millisecond, 60*time.Millisecond)

	require.NoError(t, p.Wait(context.Background(), jobURL))
	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), jobURL))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
}

func TestPacer_HostsIndependent(t *testing.T) {
	p := NewPacer(500*time.Millisecond, 500*time.Millisecond)

	require.NoError(t, p.Wait(context.Background(), "https://a.example.com/x"))
	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), "https://b.example.com/x"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestPacer_JitterWithinBounds(t *testing.T) {
	p := NewPacer(0, 50*time.Millisecond)
	var drawn []int64
	p.randN = func(n int64) int64 {
		drawn = append(drawn, n)
		return 0
	}

	require.NoError(t, p.Wait(context.Background(), jobURL))
	require.NoError(t, p.Wait(context.Background(), jobURL))
	require.Len(t, drawn, 1)
	assert.Equal(t, int64(50*time.Millisecond)+1, drawn[0])
}

func TestPacer_Disabled(t *testing.T) {
	var p *Pacer
	assert.NoError(t, p.Wait(context.Background(), jobURL))
	assert.NoError(t, NewPacer(0, 0).Wait(context.Background(), jobURL))
}
