// Package pipeline composes the fetch, aggregate, and rarity stages into
// the caller-facing library API.
package pipeline

import (
	"context"
	"fmt"

	"github.com/yasirali179/go-trait-rarity/config"
	"github.com/yasirali179/go-trait-rarity/fetcher"
	"github.com/yasirali179/go-trait-rarity/models"
	"github.com/yasirali179/go-trait-rarity/rarity"
)

// Pipeline runs the stages in order: fetch joins before aggregation starts,
// so the frequency table is only ever built from a completed batch.
type Pipeline struct {
	cfg     *config.Config
	fetcher *fetcher.Fetcher
}

// New builds a pipeline around a single reusable fetcher.
func New(cfg *config.Config) (*Pipeline, error) {
	f, err := fetcher.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("build fetcher: %w", err)
	}
	return &Pipeline{cfg: cfg, fetcher: f}, nil
}

// Fetcher exposes the underlying fetcher, mainly for metrics registration
// and transport injection in tests.
func (p *Pipeline) Fetcher() *fetcher.Fetcher {
	return p.fetcher
}

// Fetch downloads all URLs and returns the per-URL results in input order.
func (p *Pipeline) Fetch(ctx context.Context, urls []string) ([]fetcher.Result, *models.FetchSummary) {
	return p.fetcher.FetchAll(ctx, urls)
}

// Occurrences fetches all URLs and tallies trait/value occurrences over the
// successful results. The raw results ride along so the caller can decide
// how to treat a partially failed batch.
func (p *Pipeline) Occurrences(ctx context.Context, urls []string) (rarity.FrequencyTable, []fetcher.Result, *models.FetchSummary) {
	results, summary := p.fetcher.FetchAll(ctx, urls)
	return rarity.Aggregate(successfulItems(results)), results, summary
}

// Rarity fetches, aggregates, and scores every trait/value pair against the
// given collection size. The collection size is the full logical collection,
// independent of how many URLs were actually fetched.
func (p *Pipeline) Rarity(ctx context.Context, urls []string, collectionSize int) ([]models.RarityRecord, []fetcher.Result, *models.FetchSummary, error) {
	table, results, summary := p.Occurrences(ctx, urls)
	records, err := rarity.Calculate(table, collectionSize)
	if err != nil {
		return nil, results, summary, err
	}
	return records, results, summary, nil
}

// RarestItems fetches and returns the k rarest items by aggregate score.
func (p *Pipeline) RarestItems(ctx context.Context, urls []string, collectionSize, k int) ([]models.ItemScore, *models.FetchSummary, error) {
	table, results, summary := p.Occurrences(ctx, urls)
	scores, err := rarity.ScoreItems(successfulItems(results), table, collectionSize)
	if err != nil {
		return nil, summary, err
	}
	return rarity.TopRarest(scores, k), summary, nil
}

func successfulItems(results []fetcher.Result) []*models.ItemMetadata {
	items := make([]*models.ItemMetadata, 0, len(results))
	for _, result := range results {
		if result.OK() {
			items = append(items, result.Item)
		}
	}
	return items
}
