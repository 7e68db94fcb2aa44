// Package rarity tallies trait/value occurrences and scores them against a
// known collection size.
package rarity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yasirali179/go-trait-rarity/models"
)

// ErrInvalidCollectionSize is returned when a non-positive collection size
// is supplied. Scores are never computed as NaN or Inf.
var ErrInvalidCollectionSize = errors.New("rarity: collection size must be positive")

// TraitValue is the frequency table key.
type TraitValue struct {
	Trait string
	Value string
}

// FrequencyTable maps each trait/value pair to its occurrence count across
// the fetched items. It is built once after the fetch has joined and is not
// mutated concurrently.
type FrequencyTable map[TraitValue]int

// Aggregate counts every trait/value pair across the given items. The
// result depends only on the input multiset, not its order, which is what
// makes concurrent fetching safe to aggregate afterwards. Nil items are
// skipped.
func Aggregate(items []*models.ItemMetadata) FrequencyTable {
	table := make(FrequencyTable)
	for _, item := range items {
		if item == nil {
			continue
		}
		for _, attr := range item.Attributes {
			table[TraitValue{Trait: attr.Trait, Value: attr.Value}]++
		}
	}
	return table
}

// Calculate produces one RarityRecord per table entry with
// Score = Count / collectionSize. Records are sorted by (Trait, Value) so
// output is reproducible across runs.
func Calculate(table FrequencyTable, collectionSize int) ([]models.RarityRecord, error) {
	if collectionSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCollectionSize, collectionSize)
	}

	records := make([]models.RarityRecord, 0, len(table))
	for key, count := range table {
		records = append(records, models.RarityRecord{
			Trait: key.Trait,
			Value: key.Value,
			Count: count,
			Score: float64(count) / float64(collectionSize),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Trait != records[j].Trait {
			return records[i].Trait < records[j].Trait
		}
		return records[i].Value < records[j].Value
	})
	return records, nil
}

// ScoreItems assigns each item an aggregate rarity score: the mean over its
// attributes of collectionSize / count, so pairs shared by few items weigh
// more. Items without attributes score zero. Nil items are skipped.
func ScoreItems(items []*models.ItemMetadata, table FrequencyTable, collectionSize int) ([]models.ItemScore, error) {
	if collectionSize <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCollectionSize, collectionSize)
	}

	scores := make([]models.ItemScore, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		var total float64
		for _, attr := range item.Attributes {
			count := table[TraitValue{Trait: attr.Trait, Value: attr.Value}]
			if count == 0 {
				continue
			}
			total += float64(collectionSize) / float64(count)
		}
		score := 0.0
		if len(item.Attributes) > 0 {
			score = total / float64(len(item.Attributes))
		}
		scores = append(scores, models.ItemScore{URL: item.URL, Score: score})
	}
	return scores, nil
}
