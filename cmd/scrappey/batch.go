package main

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/scrappey/scrappey-go"
	"golang.org/x/time/rate"
)

// batchResult is the outcome of one URL in a batch.
type batchResult struct {
	URL        string `json:"url"`
	Data       string `json:"data,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Session    string `json:"session,omitempty"`
	Error      string `json:"error,omitempty"`
}

type fetchFunc func(ctx context.Context, targetURL string) (*scrappey.Response, error)

// readURLs returns the non-empty, non-comment lines of r.
func readURLs(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}

// runBatch fetches every URL on a pool of concurrency workers, starting at
// most perSecond requests per second (0 means unlimited). Results keep the
// input order.
func runBatch(ctx context.Context, urls []string, concurrency int, perSecond float64, fetch fetchFunc) ([]batchResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var limiter *rate.Limiter
	if perSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}

	results := make([]batchResult, len(urls))
	var wg sync.WaitGroup

	for i, u := range urls {
		results[i].URL = u

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				for j := i; j < len(urls); j++ {
					results[j] = batchResult{URL: urls[j], Error: err.Error()}
				}
				break
			}
		}

		i, u := i, u
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			resp, err := fetch(ctx, u)
			if err == nil {
				err = resp.Err()
			}
			if err != nil {
				results[i].Error = err.Error()
				if resp != nil {
					results[i].Session = resp.Session()
				}
				return
			}
			results[i].Data = resp.Data()
			results[i].StatusCode = resp.Solution().StatusCode()
			results[i].Session = resp.Session()
		})
		if err != nil {
			wg.Done()
			results[i].Error = err.Error()
		}
	}

	wg.Wait()
	return results, nil
}

func countFailures(results []batchResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}
