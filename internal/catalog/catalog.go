package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"
)

// Database is the on-disk skin catalog
type Database struct {
	Skins      []*Skin    `json:"skins"`
	DataStatus DataStatus `json:"data_status"`
}

// DataStatus tracks catalog freshness
type DataStatus struct {
	LastPriceUpdate string `json:"last_price_update,omitempty"`
}

// Skin is one catalog entry with its wear variants
type Skin struct {
	ID         string     `json:"id"`
	FullName   string     `json:"full_name"`
	Weapon     string     `json:"weapon"`
	SkinName   string     `json:"skin_name"`
	Introduced string     `json:"introduced"`
	Variants   []*Variant `json:"variants"`
}

// Variant is one wear level of a skin
type Variant struct {
	Wear   string        `json:"wear"`
	Prices VariantPrices `json:"prices"`
}

// VariantPrices holds the collected prices for the normal and StatTrak forms
type VariantPrices struct {
	Normal   PriceRecord `json:"normal"`
	StatTrak PriceRecord `json:"stattrak"`
}

// PriceRecord is the last collected price for one variant form
type PriceRecord struct {
	USD         float64 `json:"usd"`
	LastUpdated string  `json:"last_updated,omitempty"`
}

// Load reads the catalog from disk
func Load(path string) (*Database, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var database Database
	if err := json.Unmarshal(raw, &database); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &database, nil
}

// Save writes the catalog back to disk, stamping the update time
func (database *Database) Save(path string) error {
	database.DataStatus.LastPriceUpdate = time.Now().Format(time.RFC3339)

	raw, err := json.MarshalIndent(database, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

// MarketHashName builds the Steam Market identifier for a skin variant
func MarketHashName(skin *Skin, variant *Variant, statTrak bool) string {
	prefix := ""
	if statTrak {
		prefix = "StatTrak™ "
	}
	return fmt.Sprintf("%s%s | %s (%s)", prefix, skin.Weapon, skin.SkinName, variant.Wear)
}

// dateFormats are the introduction-date layouts seen in catalog exports
var dateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	"2006/01/02",
	"January 2, 2006",
}

// parseDate parses an introduction date, returning the zero time for unknown
// or unparsable values so they sort last.
func parseDate(value string) time.Time {
	if value == "" || value == "Unknown" {
		return time.Time{}
	}
	for _, layout := range dateFormats {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// SortByDateDesc orders skins newest-first by introduction date. The sort is
// stable so unknown dates keep their catalog order at the end.
func SortByDateDesc(skins []*Skin) {
	sort.SliceStable(skins, func(i, j int) bool {
		return parseDate(skins[i].Introduced).After(parseDate(skins[j].Introduced))
	})
}
