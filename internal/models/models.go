package models

import "time"

// PriceOverview is the Steam Community Market priceoverview response for one item.
// Price fields are formatted strings such as "$12.34" or "1.234,56€" and may be absent.
type PriceOverview struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price,omitempty"`
	MedianPrice string `json:"median_price,omitempty"`
	Volume      string `json:"volume,omitempty"`
}

// ItemPrice is the service-level view of a fetched price
type ItemPrice struct {
	MarketHashName string         `json:"market_hash_name"`
	Currency       int            `json:"currency"`
	Price          float64        `json:"price"`
	WaitedSeconds  float64        `json:"waited_seconds"`
	FetchedAt      time.Time      `json:"fetched_at"`
	Raw            *PriceOverview `json:"raw,omitempty"`
}

// HealthCheck represents the service health response
type HealthCheck struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

// ErrorResponse represents an error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
