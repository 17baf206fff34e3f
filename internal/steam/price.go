package steam

import (
	"strconv"
	"strings"

	"steam-price-api/internal/models"
)

// ParsePrice extracts a numeric value from a formatted Steam price string
// such as "$1,234.56", "1.234,56€" or "2,50€". Currency symbols are dropped
// and separators normalized: when both appear the later one is the decimal
// mark; a lone comma followed by exactly two digits is a decimal mark,
// otherwise a thousands separator. Unparsable input yields 0.
func ParsePrice(price string) float64 {
	var cleaned strings.Builder
	for _, r := range price {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			cleaned.WriteRune(r)
		}
	}

	normalized := normalizeSeparators(cleaned.String())
	if normalized == "" {
		return 0
	}

	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0
	}
	return value
}

func normalizeSeparators(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 == 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	return s
}

// PriceValue picks the numeric price from an overview, preferring the lowest
// listing and falling back to the median.
func PriceValue(overview *models.PriceOverview) float64 {
	if overview == nil {
		return 0
	}
	if lowest := ParsePrice(overview.LowestPrice); lowest > 0 {
		return lowest
	}
	return ParsePrice(overview.MedianPrice)
}
