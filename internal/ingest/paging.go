package ingest

import (
	"context"
	"errors"
	"fmt"

	"portalrecruit/ingestion/internal/envelope"
)

// maxPages bounds one skip/take walk. A team season never comes close.
const maxPages = 200

var (
	// errPageStalled means a full page carried nothing not already seen,
	// which happens when the upstream ignores skip.
	errPageStalled = errors.New("page repeated earlier entries")
	// errPageLimit means the walk hit maxPages without a short page.
	errPageLimit = errors.New("page limit reached")
)

type pageFetch func(ctx context.Context, take, skip int) (envelope.Page, error)

// walkPages fetches consecutive pages and hands the records of each to
// visit, which returns how many of them were new. It ends on a short page.
// Stalls and the page cap end it with an error, as do cancellation and
// fetch failures.
func walkPages(ctx context.Context, take int, fetch pageFetch, visit func([]envelope.Record) int) error {
	skip := 0
	for n := 0; n < maxPages; n++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := fetch(ctx, take, skip)
		if err != nil {
			return err
		}
		added := visit(page.Records)

		if !page.Full(take) {
			return nil
		}
		if added == 0 {
			return fmt.Errorf("%w at skip=%d", errPageStalled, skip)
		}
		skip += page.Entries
	}
	return fmt.Errorf("%w (%d pages of %d)", errPageLimit, maxPages, take)
}
