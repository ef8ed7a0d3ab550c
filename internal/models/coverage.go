package models

import "time"

// CoverageRecord tracks how much daily price data has been fetched for one
// symbol. Dates are YYYY-MM-DD strings, matching the on-disk metadata
// format. EndDate is empty while no data has ever been fetched.
type CoverageRecord struct {
	Symbol      string `json:"symbol"`
	ListingDate string `json:"listing_date"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
}

// IngestEvent is published to Kafka as the pipeline makes progress.
type IngestEvent struct {
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol,omitempty"`
	Records   int       `json:"records,omitempty"`
	Processed int       `json:"processed,omitempty"`
	Errored   int       `json:"errored,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Ingest event types.
const (
	EventSymbolIngested = "SYMBOL_INGESTED"
	EventRunCompleted   = "RUN_COMPLETED"
)
