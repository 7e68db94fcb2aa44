// Package fetcher downloads item metadata documents concurrently.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yasirali179/go-trait-rarity/config"
	"github.com/yasirali179/go-trait-rarity/models"
)

const slotKey = "slot"

// Result is the outcome of fetching one URL. Exactly one of Item or Err is
// set; the slice returned by FetchAll is aligned to the input URL order.
type Result struct {
	URL  string
	Item *models.ItemMetadata
	Err  error
}

// OK reports whether the fetch produced parsed metadata.
func (r Result) OK() bool {
	return r.Err == nil && r.Item != nil
}

// Fetcher wraps a reusable colly collector for metadata downloads. The
// collector carries the shared HTTP transport; each run clones it so handler
// registration stays scoped to that run.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	cache     *lru.Cache[string, *models.ItemMetadata]
	Metrics   *Metrics
}

// New builds a fetcher instance configured from cfg.
func New(cfg *config.Config) (*Fetcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if cfg.Parallelism <= 0 {
		return nil, fmt.Errorf("parallelism must be positive")
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = true
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, fmt.Errorf("configure concurrency limit: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		Metrics:   NewMetrics(),
	}

	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, *models.ItemMetadata](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("build metadata cache: %w", err)
		}
		f.cache = cache
	}

	return f, nil
}

// WithTransport swaps the HTTP transport. Tests inject mock transports here.
func (f *Fetcher) WithTransport(transport http.RoundTripper) {
	f.collector.WithTransport(transport)
}

// FetchAll downloads every URL with at most cfg.Parallelism requests in
// flight and returns one Result per URL, index-aligned with the input. A
// failing URL never aborts the batch; its slot carries the error. FetchAll
// only returns after every request has completed, so callers observe a fully
// joined batch.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) ([]Result, *models.FetchSummary) {
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]Result, len(urls))
	summary := &models.FetchSummary{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}
	var mu sync.Mutex

	c := f.collector.Clone()

	c.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		f.Metrics.IncRequest("started")
	})

	c.OnResponse(func(r *colly.Response) {
		idx, ok := r.Ctx.GetAny(slotKey).(int)
		if !ok {
			return
		}
		if start, ok := r.Ctx.GetAny("start").(time.Time); ok {
			f.Metrics.ObserveDuration(time.Since(start))
		}

		url := urls[idx]
		if r.StatusCode/100 != 2 {
			f.fail(results, summary, &mu, idx, url, StatusError{URL: url, StatusCode: r.StatusCode})
			return
		}

		attributes, err := parseAttributes(r.Body, f.cfg)
		if err != nil {
			f.fail(results, summary, &mu, idx, url, ParseError{URL: url, Err: err})
			return
		}

		item := &models.ItemMetadata{
			URL:        url,
			Attributes: attributes,
			StatusCode: r.StatusCode,
			FetchedAt:  time.Now(),
		}
		mu.Lock()
		results[idx] = Result{URL: url, Item: item}
		summary.SuccessCount++
		mu.Unlock()

		if f.cache != nil {
			f.cache.Add(url, item)
		}
		f.Metrics.IncItems()
		slog.Debug("metadata fetched",
			slog.String("url", url),
			slog.Int("attributes", len(attributes)),
		)
	})

	c.OnError(func(r *colly.Response, err error) {
		if r == nil || r.Request == nil {
			return
		}
		idx, ok := r.Request.Ctx.GetAny(slotKey).(int)
		if !ok {
			return
		}
		url := urls[idx]
		f.fail(results, summary, &mu, idx, url, classifyTransportError(url, err, r.StatusCode))
	})

	for i, url := range urls {
		if ctx.Err() != nil {
			mu.Lock()
			results[i] = Result{URL: url, Err: ctx.Err()}
			summary.ErrorCount++
			summary.ErrorsByType["canceled"]++
			mu.Unlock()
			continue
		}

		if f.cache != nil {
			if item, ok := f.cache.Get(url); ok {
				mu.Lock()
				results[i] = Result{URL: url, Item: item}
				summary.SuccessCount++
				summary.CacheHits++
				mu.Unlock()
				f.Metrics.IncCacheHit()
				continue
			}
		}

		mu.Lock()
		summary.RequestCount++
		mu.Unlock()

		rctx := colly.NewContext()
		rctx.Put(slotKey, i)
		if err := c.Request(http.MethodGet, url, nil, rctx, nil); err != nil {
			f.fail(results, summary, &mu, i, url, fmt.Errorf("dispatch request: %w", err))
		}
	}

	c.Wait()
	summary.EndTime = time.Now()
	return results, summary
}

func (f *Fetcher) fail(results []Result, summary *models.FetchSummary, mu *sync.Mutex, idx int, url string, err error) {
	label := errorTypeLabel(err)

	mu.Lock()
	results[idx] = Result{URL: url, Err: err}
	summary.ErrorCount++
	summary.ErrorsByType[label]++
	summary.FailedURLs = append(summary.FailedURLs, url)
	mu.Unlock()

	f.Metrics.IncError(label)
	slog.Error("fetch failed",
		slog.String("url", url),
		slog.String("category", label),
		slog.Any("error", err),
	)
}

func classifyTransportError(url string, err error, statusCode int) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError{URL: url, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return TimeoutError{URL: url, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ConnectionError{URL: url, Err: err}
	}
	if statusCode != 0 && statusCode/100 != 2 {
		return StatusError{URL: url, StatusCode: statusCode}
	}
	if err == nil {
		return fmt.Errorf("fetch %s failed", url)
	}
	return fmt.Errorf("fetch %s: %w", url, err)
}
