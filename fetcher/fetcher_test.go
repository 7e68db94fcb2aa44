package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/yasirali179/go-trait-rarity/config"
)

func metadataBody(pairs ...[2]string) string {
	body := `{"attributes": [`
	for i, pair := range pairs {
		if i > 0 {
			body += ","
		}
		body += fmt.Sprintf(`{"trait_type": %q, "value": %q}`, pair[0], pair[1])
	}
	return body + `]}`
}

func jsonResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "application/json")
	return httpmock.ResponderFromResponse(resp)
}

func newTestFetcher(t *testing.T, cfg *config.Config, transport http.RoundTripper) *Fetcher {
	t.Helper()
	f, err := New(cfg)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	f.WithTransport(transport)
	return f
}

func TestFetchAllAlignsResultsToInputOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 4

	urls := []string{
		"http://example.test/1.json",
		"http://example.test/2.json",
		"http://example.test/3.json",
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", urls[0], jsonResponder(200, metadataBody([2]string{"bg", "red"})))
	transport.RegisterResponder("GET", urls[1], jsonResponder(200, metadataBody([2]string{"bg", "blue"})))
	transport.RegisterResponder("GET", urls[2], jsonResponder(200, metadataBody([2]string{"bg", "red"})))

	f := newTestFetcher(t, cfg, transport)
	results, summary := f.FetchAll(context.Background(), urls)

	if len(results) != len(urls) {
		t.Fatalf("results = %d, want %d", len(results), len(urls))
	}
	for i, result := range results {
		if result.URL != urls[i] {
			t.Fatalf("results[%d].URL = %s, want %s", i, result.URL, urls[i])
		}
		if !result.OK() {
			t.Fatalf("results[%d] failed: %v", i, result.Err)
		}
		if result.Item.StatusCode != 200 {
			t.Fatalf("results[%d] status = %d, want 200", i, result.Item.StatusCode)
		}
	}
	if results[1].Item.Attributes[0].Value != "blue" {
		t.Fatalf("results[1] value = %s, want blue", results[1].Item.Attributes[0].Value)
	}
	if summary.SuccessCount != 3 || summary.ErrorCount != 0 {
		t.Fatalf("summary = %+v, want 3 successes and no errors", summary)
	}
}

func TestFetchAllStatusErrorDoesNotAbortBatch(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 2

	urls := []string{
		"http://example.test/ok.json",
		"http://example.test/missing.json",
		"http://example.test/also-ok.json",
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", urls[0], jsonResponder(200, metadataBody([2]string{"bg", "red"})))
	transport.RegisterResponder("GET", urls[1], jsonResponder(404, "not found"))
	transport.RegisterResponder("GET", urls[2], jsonResponder(200, metadataBody([2]string{"bg", "blue"})))

	f := newTestFetcher(t, cfg, transport)
	results, summary := f.FetchAll(context.Background(), urls)

	if !results[0].OK() || !results[2].OK() {
		t.Fatalf("healthy URLs should succeed: %v / %v", results[0].Err, results[2].Err)
	}

	if results[1].Item != nil {
		t.Fatalf("failed URL should carry no metadata")
	}
	var statusErr StatusError
	if !errors.As(results[1].Err, &statusErr) {
		t.Fatalf("results[1].Err = %v, want StatusError", results[1].Err)
	}
	if statusErr.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", statusErr.StatusCode)
	}

	if summary.SuccessCount != 2 || summary.ErrorCount != 1 {
		t.Fatalf("summary = %+v, want 2 successes and 1 error", summary)
	}
	if summary.ErrorsByType["status"] != 1 {
		t.Fatalf("errors by type = %v, want one status error", summary.ErrorsByType)
	}
	if len(summary.FailedURLs) != 1 || summary.FailedURLs[0] != urls[1] {
		t.Fatalf("failed urls = %v, want [%s]", summary.FailedURLs, urls[1])
	}
}

func TestFetchAllParseErrorClassification(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{{{`},
		{name: "missing attributes", body: `{"name": "Token"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "http://example.test/item.json"
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", url, jsonResponder(200, tt.body))

			f := newTestFetcher(t, cfg, transport)
			results, summary := f.FetchAll(context.Background(), []string{url})

			var parseErr ParseError
			if !errors.As(results[0].Err, &parseErr) {
				t.Fatalf("err = %v, want ParseError", results[0].Err)
			}
			if summary.ErrorsByType["parse"] != 1 {
				t.Fatalf("errors by type = %v, want one parse error", summary.ErrorsByType)
			}
		})
	}
}

func TestFetchAllTransportErrorClassification(t *testing.T) {
	cfg := config.DefaultConfig()

	tests := []struct {
		name  string
		err   error
		label string
	}{
		{name: "timeout", err: &net.DNSError{IsTimeout: true}, label: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, label: "connection"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := "http://example.test/item.json"
			transport := httpmock.NewMockTransport()
			transport.RegisterResponder("GET", url, httpmock.NewErrorResponder(tt.err))

			f := newTestFetcher(t, cfg, transport)
			results, summary := f.FetchAll(context.Background(), []string{url})

			if results[0].Err == nil {
				t.Fatalf("expected transport error")
			}
			if summary.ErrorsByType[tt.label] != 1 {
				t.Fatalf("errors by type = %v, want one %s error", summary.ErrorsByType, tt.label)
			}
		})
	}
}

func TestFetchAllServesRepeatRunsFromCache(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CacheSize = 16

	urls := []string{
		"http://example.test/1.json",
		"http://example.test/2.json",
	}

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", urls[0], jsonResponder(200, metadataBody([2]string{"bg", "red"})))
	transport.RegisterResponder("GET", urls[1], jsonResponder(200, metadataBody([2]string{"bg", "blue"})))

	f := newTestFetcher(t, cfg, transport)

	first, firstSummary := f.FetchAll(context.Background(), urls)
	if firstSummary.CacheHits != 0 || firstSummary.RequestCount != 2 {
		t.Fatalf("first run summary = %+v, want 2 requests and no cache hits", firstSummary)
	}

	second, secondSummary := f.FetchAll(context.Background(), urls)
	if secondSummary.CacheHits != 2 || secondSummary.RequestCount != 0 {
		t.Fatalf("second run summary = %+v, want 0 requests and 2 cache hits", secondSummary)
	}
	if transport.GetTotalCallCount() != 2 {
		t.Fatalf("transport calls = %d, want 2", transport.GetTotalCallCount())
	}

	for i := range urls {
		if !second[i].OK() {
			t.Fatalf("cached result %d failed: %v", i, second[i].Err)
		}
		if second[i].Item != first[i].Item {
			t.Fatalf("cached result %d should reuse the parsed item", i)
		}
	}
}

func TestFetchAllCanceledContextSkipsDispatch(t *testing.T) {
	cfg := config.DefaultConfig()

	urls := []string{
		"http://example.test/1.json",
		"http://example.test/2.json",
	}

	transport := httpmock.NewMockTransport()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newTestFetcher(t, cfg, transport)
	results, summary := f.FetchAll(ctx, urls)

	for i, result := range results {
		if !errors.Is(result.Err, context.Canceled) {
			t.Fatalf("results[%d].Err = %v, want context.Canceled", i, result.Err)
		}
	}
	if summary.RequestCount != 0 {
		t.Fatalf("request count = %d, want 0", summary.RequestCount)
	}
	if transport.GetTotalCallCount() != 0 {
		t.Fatalf("transport calls = %d, want 0", transport.GetTotalCallCount())
	}
}

func TestFetchAllEmptyInput(t *testing.T) {
	f := newTestFetcher(t, config.DefaultConfig(), httpmock.NewMockTransport())

	results, summary := f.FetchAll(context.Background(), nil)
	if len(results) != 0 {
		t.Fatalf("results = %v, want empty", results)
	}
	if summary.RequestCount != 0 || summary.ErrorCount != 0 {
		t.Fatalf("summary = %+v, want empty run", summary)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 0
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for zero parallelism")
	}

	cfg = config.DefaultConfig()
	cfg.Timeout = 0
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for zero timeout")
	}

	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
