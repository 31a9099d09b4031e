package models

import "time"

// RawRecord is one provider document keyed by its natural identifier.
// Payload is marshalled to JSON unchanged.
type RawRecord struct {
	SourceID string
	Payload  any
}

// UpsertResult reports how many records a sink call wrote.
type UpsertResult struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// EntityResult summarises one entity sync.
type EntityResult struct {
	Provider string        `json:"provider"`
	Entity   string        `json:"entity"`
	Table    string        `json:"table"`
	Fetched  int           `json:"fetched"`
	Unique   int           `json:"unique"`
	Upserted int           `json:"upserted"`
	Duration time.Duration `json:"duration_ns"`
}
