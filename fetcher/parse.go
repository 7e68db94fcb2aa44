package fetcher

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/yasirali179/go-trait-rarity/config"
	"github.com/yasirali179/go-trait-rarity/models"
)

// parseAttributes extracts the trait/value list from a metadata document.
// Field names come from the config because the exact schema depends on the
// metadata provider; the defaults match the common token-metadata shape.
func parseAttributes(body []byte, cfg *config.Config) ([]models.AttributeEntry, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	raw, ok := doc[cfg.AttributesKey]
	if !ok {
		return nil, fmt.Errorf("field %q not found", cfg.AttributesKey)
	}

	var rawEntries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rawEntries); err != nil {
		return nil, fmt.Errorf("field %q is not an attribute list: %w", cfg.AttributesKey, err)
	}

	entries := make([]models.AttributeEntry, 0, len(rawEntries))
	for _, rawEntry := range rawEntries {
		trait, ok := firstScalar(rawEntry, cfg.TraitKeys)
		if !ok {
			continue
		}
		value, ok := scalarString(rawEntry[cfg.ValueKey])
		if !ok {
			continue
		}
		entries = append(entries, models.AttributeEntry{
			Trait: strings.TrimSpace(trait),
			Value: strings.TrimSpace(value),
		})
	}
	return entries, nil
}

func firstScalar(entry map[string]json.RawMessage, keys []string) (string, bool) {
	for _, key := range keys {
		if value, ok := scalarString(entry[key]); ok {
			return value, true
		}
	}
	return "", false
}

// scalarString normalizes a JSON scalar to its canonical string form.
// Objects, arrays, and null are rejected.
func scalarString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
