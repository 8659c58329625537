package main

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scrappey/scrappey-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadURLs(t *testing.T) {
	input := `
# targets
https://example.com/a

  https://example.com/b
#https://example.com/skipped
`
	urls, err := readURLs(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, urls)
}

func fakeResponse(data string, status int) *scrappey.Response {
	return &scrappey.Response{Fields: map[string]any{
		"data":     data,
		"session":  "s-1",
		"error":    "blocked",
		"solution": map[string]any{"statusCode": float64(status)},
	}}
}

func TestRunBatch_OrderAndErrors(t *testing.T) {
	urls := []string{"https://a.test", "https://b.test", "https://c.test", "https://d.test"}

	fetch := func(ctx context.Context, targetURL string) (*scrappey.Response, error) {
		switch targetURL {
		case "https://b.test":
			return nil, errors.New("connection refused")
		case "https://c.test":
			return fakeResponse("error", 0), nil
		}
		return fakeResponse("success", 200), nil
	}

	results, err := runBatch(context.Background(), urls, 2, 0, fetch)
	require.NoError(t, err)
	require.Len(t, results, len(urls))

	for i, u := range urls {
		assert.Equal(t, u, results[i].URL)
	}
	assert.Equal(t, 200, results[0].StatusCode)
	assert.Equal(t, "success", results[0].Data)
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "connection refused", results[1].Error)
	assert.Contains(t, results[2].Error, "blocked")
	assert.Equal(t, "s-1", results[2].Session)
	assert.Empty(t, results[3].Error)

	assert.Equal(t, 2, countFailures(results))
}

func TestRunBatch_Concurrency(t *testing.T) {
	urls := make([]string, 12)
	for i := range urls {
		urls[i] = "https://example.com"
	}

	var running, peak int32
	fetch := func(ctx context.Context, targetURL string) (*scrappey.Response, error) {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return fakeResponse("success", 200), nil
	}

	results, err := runBatch(context.Background(), urls, 3, 0, fetch)
	require.NoError(t, err)
	assert.Equal(t, 0, countFailures(results))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestRunBatch_RateLimit(t *testing.T) {
	urls := []string{"https://a.test", "https://b.test", "https://c.test"}
	fetch := func(ctx context.Context, targetURL string) (*scrappey.Response, error) {
		return fakeResponse("success", 200), nil
	}

	start := time.Now()
	_, err := runBatch(context.Background(), urls, 3, 20, fetch)
	require.NoError(t, err)

	// Burst 1 at 20/s: the third request starts no earlier than ~100ms in.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestRunBatch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	fetch := func(ctx context.Context, targetURL string) (*scrappey.Response, error) {
		atomic.AddInt32(&calls, 1)
		return fakeResponse("success", 200), nil
	}

	results, err := runBatch(ctx, []string{"https://a.test", "https://b.test"}, 1, 1, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, countFailures(results))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
