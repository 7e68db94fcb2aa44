// Package models defines data structures for the rarity scanner.
package models

import "time"

// AttributeEntry is a single trait/value pair extracted from item metadata.
// Entries are immutable once parsed.
type AttributeEntry struct {
	Trait string `csv:"trait" json:"trait"`
	Value string `csv:"value" json:"value"`
}

// ItemMetadata holds the parsed metadata of one successfully fetched item.
// Attribute order follows the order in the source document.
type ItemMetadata struct {
	URL        string           `json:"url"`
	Attributes []AttributeEntry `json:"attributes"`
	StatusCode int              `json:"status_code"`
	FetchedAt  time.Time        `json:"fetched_at"`
}

// RarityRecord describes how rare one trait/value pair is across the full
// collection. Score is Count divided by the collection size.
type RarityRecord struct {
	Trait string  `csv:"trait" json:"trait"`
	Value string  `csv:"value" json:"value"`
	Count int     `csv:"count" json:"count"`
	Score float64 `csv:"score" json:"score"`
}

// ItemScore is the aggregate rarity score of one item; higher means rarer.
type ItemScore struct {
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// FetchSummary holds the overall result of a fetch run.
type FetchSummary struct {
	StartTime    time.Time
	EndTime      time.Time
	RequestCount int
	SuccessCount int
	ErrorCount   int
	CacheHits    int
	FailedURLs   []string
	ErrorsByType map[string]int
}
