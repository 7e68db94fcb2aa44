package config

import (
	"fmt"
	"time"
)

// Config holds fetcher and pipeline configuration.
type Config struct {
	Parallelism   int
	Timeout       time.Duration
	UserAgent     string
	AttributesKey string
	TraitKeys     []string
	ValueKey      string
	CacheSize     int
	OutputFile    string
	OutputFormat  string // csv, json, or dual
	MetricsAddr   string
	Verbose       bool
}

// DefaultConfig returns conservative defaults. The attribute field names
// follow the common token-metadata shape ({"attributes": [{"trait_type":
// ..., "value": ...}]}); override them when the provider uses a different
// schema.
func DefaultConfig() *Config {
	return &Config{
		Parallelism:   16,
		Timeout:       10 * time.Second,
		UserAgent:     "go-trait-rarity/1.0",
		AttributesKey: "attributes",
		TraitKeys:     []string{"trait_type", "trait"},
		ValueKey:      "value",
		CacheSize:     0,
		OutputFile:    "output/rarity.csv",
		OutputFormat:  "csv",
		MetricsAddr:   "",
		Verbose:       false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.AttributesKey == "" {
		return fmt.Errorf("attributes key cannot be empty")
	}
	if len(c.TraitKeys) == 0 {
		return fmt.Errorf("at least one trait key is required")
	}
	for _, key := range c.TraitKeys {
		if key == "" {
			return fmt.Errorf("trait keys cannot be empty")
		}
	}
	if c.ValueKey == "" {
		return fmt.Errorf("value key cannot be empty")
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output file cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	return nil
}
