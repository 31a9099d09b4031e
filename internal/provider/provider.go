// Package provider defines the entity jobs provider packages register and
// the authenticated JSON caller they share.
package provider

import (
	"context"
	"fmt"

	"github.com/lifedata/connector/internal/fetch"
	"github.com/lifedata/connector/internal/models"
)

// Mode says how an entity walks its date range.
type Mode string

const (
	// ModeMaster ignores the range; one snapshot per run.
	ModeMaster Mode = "master"
	// ModeRange splits the range into ChunkDays windows, or sends it
	// whole when ChunkDays is 0.
	ModeRange Mode = "range"
	// ModeDaily requests one calendar day at a time.
	ModeDaily Mode = "daily"
	// ModePaged pages through the whole range in one listing.
	ModePaged Mode = "paged"
)

// FetchFunc fetches one window and transforms the result into raw records.
type FetchFunc func(ctx context.Context, w fetch.Window) ([]models.RawRecord, error)

// Entity is one provider data type landing in one raw table.
type Entity struct {
	Provider string
	Name     string
	Table    string
	Version  string
	Mode     Mode
	// ChunkDays is the longest window one request may cover (ModeRange).
	ChunkDays int
	// UpsertPerChunk dedups and writes each window before fetching the next.
	UpsertPerChunk bool
	Fetch          FetchFunc
}

// Chunking describes the request pattern for listings.
func (e Entity) Chunking() string {
	switch e.Mode {
	case ModeRange:
		if e.ChunkDays <= 0 {
			return "single"
		}
		s := fmt.Sprintf("%dd", e.ChunkDays)
		if e.UpsertPerChunk {
			s += " (upsert per chunk)"
		}
		return s
	case ModeDaily:
		return "1d"
	case ModePaged:
		return "paged"
	default:
		return "-"
	}
}

// Provider is a source with an ordered list of entities. Masters come
// before time series.
type Provider interface {
	Name() string
	Entities() []Entity
}
