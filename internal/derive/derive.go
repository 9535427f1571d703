// Package derive turns stored plays into features: tags, backfilled player
// attribution and per-player trait indices.
package derive

import (
	"context"
	"time"

	"portalrecruit/ingestion/internal/metrics"
)

// Store is everything a derivation pass needs from the store
type Store interface {
	NameStore
	TraitStore
}

// Options controls a derivation pass
type Options struct {
	SkipBackfill bool
	// HustleKeywords drive the dog index.
	HustleKeywords []string
}

// Result summarizes a derivation pass
type Result struct {
	Backfill *BackfillResult `json:"backfill,omitempty"`
	Traits   int             `json:"traits"`
}

// Run backfills player names, unless skipped, and then rebuilds traits so
// that freshly attributed plays count.
func Run(ctx context.Context, store Store, opts Options) (*Result, error) {
	start := time.Now()
	result := &Result{}

	if !opts.SkipBackfill {
		backfill, err := BackfillNames(ctx, store)
		if err != nil {
			metrics.RecordError("derive", "backfill")
			return nil, err
		}
		result.Backfill = backfill
	}

	traits, err := BuildTraits(ctx, store, opts.HustleKeywords)
	if err != nil {
		metrics.RecordError("derive", "traits")
		return nil, err
	}
	result.Traits = len(traits)

	metrics.RecordSync("derive", "success", time.Since(start).Seconds())
	return result, nil
}
