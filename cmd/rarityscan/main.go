package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yasirali179/go-trait-rarity/config"
	"github.com/yasirali179/go-trait-rarity/models"
	"github.com/yasirali179/go-trait-rarity/pipeline"
	"github.com/yasirali179/go-trait-rarity/rarity"
	"github.com/yasirali179/go-trait-rarity/report"
)

func main() {
	defaultCfg := config.DefaultConfig()
	parallelDefault := defaultCfg.Parallelism
	if value, ok, err := config.EnvInt("RARITY_PARALLEL"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid RARITY_PARALLEL: %v\n", err)
		os.Exit(1)
	} else if ok {
		parallelDefault = value
	}
	sizeDefault := 0
	if value, ok, err := config.EnvInt("RARITY_COLLECTION_SIZE"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid RARITY_COLLECTION_SIZE: %v\n", err)
		os.Exit(1)
	} else if ok {
		sizeDefault = value
	}
	outputDefault := defaultCfg.OutputFile
	if value, ok := config.EnvString("RARITY_OUTPUT"); ok {
		outputDefault = value
	}
	metricsDefault := defaultCfg.MetricsAddr
	if value, ok := config.EnvString("RARITY_METRICS_ADDR"); ok {
		metricsDefault = value
	}

	urlFile := flag.String("urls", "", "File containing one metadata URL per line")
	baseURL := flag.String("base-url", "", "Base URL for {base}/{id}.json expansion")
	startID := flag.Int("start-id", 1, "First item ID for URL expansion")
	endID := flag.Int("end-id", 0, "Last item ID for URL expansion")
	gatewayToken := flag.String("gateway-token", "", "Optional pinataGatewayToken query parameter")
	collectionSize := flag.Int("collection-size", sizeDefault, "Total size of the logical collection")
	parallelism := flag.Int("parallel", parallelDefault, "Number of concurrent requests")
	timeoutSec := flag.Int("timeout", 10, "Per-request timeout (seconds)")
	cacheSize := flag.Int("cache-size", 0, "Metadata LRU cache capacity (0 disables)")
	attributesKey := flag.String("attributes-key", defaultCfg.AttributesKey, "JSON field holding the attribute list")
	traitKeys := flag.String("trait-keys", strings.Join(defaultCfg.TraitKeys, ","), "Comma-separated trait field names, first match wins")
	valueKey := flag.String("value-key", defaultCfg.ValueKey, "JSON field holding the attribute value")
	outputFile := flag.String("output", outputDefault, "Output file path")
	outputFormat := flag.String("format", "csv", "Output format: csv, json, or dual")
	topK := flag.Int("top", 5, "Number of rarest items to print (0 disables)")
	metricsAddr := flag.String("metrics-addr", metricsDefault, "Prometheus metrics listen address (e.g. :9090)")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg := defaultCfg
	cfg.Parallelism = *parallelism
	cfg.Timeout = time.Duration(*timeoutSec) * time.Second
	cfg.CacheSize = *cacheSize
	cfg.AttributesKey = *attributesKey
	cfg.TraitKeys = splitKeys(*traitKeys)
	cfg.ValueKey = *valueKey
	cfg.OutputFile = *outputFile
	cfg.OutputFormat = strings.ToLower(*outputFormat)
	cfg.Verbose = *verbose
	cfg.MetricsAddr = *metricsAddr

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if *collectionSize <= 0 {
		slog.Error("collection size must be positive", slog.Int("collection_size", *collectionSize))
		os.Exit(1)
	}

	urls, err := buildURLList(*urlFile, *baseURL, *startID, *endID, *gatewayToken)
	if err != nil {
		slog.Error("building url list", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("starting rarity scan",
		slog.Int("urls", len(urls)),
		slog.Int("workers", cfg.Parallelism),
		slog.Int("collection_size", *collectionSize),
	)

	p, err := pipeline.New(cfg)
	if err != nil {
		slog.Error("initialising pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		slog.Error("creating writer", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received, waiting for in-flight requests to finish")
	}()

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: promhttp.HandlerFor(p.Fetcher().Metrics.Registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		slog.Info("metrics server enabled", slog.String("addr", cfg.MetricsAddr))
	}

	startTime := time.Now()
	table, results, summary := p.Occurrences(ctx, urls)

	records, err := rarity.Calculate(table, *collectionSize)
	if err != nil {
		slog.Error("rarity calculation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if err := writer.Write(records); err != nil {
		slog.Error("writing rarity records", slog.Any("error", err))
		os.Exit(1)
	}
	if err := writer.Validate(); err != nil {
		slog.Error("output validation failed", slog.Any("error", err))
		os.Exit(1)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
		cancel()
	}

	printSummary(summary, records, time.Since(startTime), cfg.OutputFile)

	if *topK > 0 {
		items := make([]*models.ItemMetadata, 0, len(results))
		for _, result := range results {
			if result.OK() {
				items = append(items, result.Item)
			}
		}
		scores, err := rarity.ScoreItems(items, table, *collectionSize)
		if err != nil {
			slog.Error("item scoring failed", slog.Any("error", err))
			os.Exit(1)
		}
		printTopRarest(rarity.TopRarest(scores, *topK))
	}
}

func buildURLList(urlFile, baseURL string, startID, endID int, gatewayToken string) ([]string, error) {
	if urlFile != "" {
		return readURLFile(urlFile)
	}
	if baseURL == "" {
		return nil, fmt.Errorf("either -urls or -base-url is required")
	}
	if endID < startID {
		return nil, fmt.Errorf("end-id %d is before start-id %d", endID, startID)
	}

	query := ""
	if gatewayToken != "" {
		params := url.Values{}
		params.Set("pinataGatewayToken", gatewayToken)
		query = "?" + params.Encode()
	}

	urls := make([]string, 0, endID-startID+1)
	for id := startID; id <= endID; id++ {
		urls = append(urls, fmt.Sprintf("%s/%d.json%s", strings.TrimSuffix(baseURL, "/"), id, query))
	}
	return urls, nil
}

func readURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("url file %s contains no URLs", path)
	}
	return urls, nil
}

func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		if key := strings.TrimSpace(part); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func createWriter(format, filename string) (report.Writer, error) {
	switch format {
	case "json":
		return report.NewJSONWriter(filename)
	case "csv":
		return report.NewCSVWriter(filename)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return report.NewDualWriter(filename, jsonFilename)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printSummary(summary *models.FetchSummary, records []models.RarityRecord, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Rarity scan complete")

	fmt.Printf("  Items fetched:  %d\n", summary.SuccessCount)
	fmt.Printf("  Cache hits:     %d\n", summary.CacheHits)
	successRate := 0.0
	if summary.RequestCount > 0 {
		successRate = float64(summary.RequestCount-summary.ErrorCount) / float64(summary.RequestCount) * 100
	}
	fmt.Printf("  Success rate:   %.2f%%\n", successRate)
	fmt.Printf("  Errors:         %d\n", summary.ErrorCount)
	fmt.Printf("  Failed URLs:    %d\n", len(summary.FailedURLs))
	if len(summary.ErrorsByType) > 0 {
		fmt.Printf("  Error types:    %v\n", summary.ErrorsByType)
	}
	fmt.Printf("  Trait pairs:    %d\n", len(records))
	fmt.Printf("  Duration:       %v\n", duration)
	fmt.Printf("  Output file:    %s\n", outputFile)
	fmt.Println(separator)
}

func printTopRarest(scores []models.ItemScore) {
	if len(scores) == 0 {
		return
	}
	fmt.Println("Rarest items:")
	for i, score := range scores {
		fmt.Printf("  %d. %s (score %.4f)\n", i+1, score.URL, score.Score)
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
