package export

import (
	"context"
	"fmt"

	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

// StorePageSize is how many rows StoredVectors asks for per query.
const StorePageSize = 500

// ScoreLister is the read side of store.Store.
type ScoreLister interface {
	ListScores(ctx context.Context, filter store.ScoreFilter) ([]*store.ScoreRecord, error)
}

// StoredVectors pages through the rows matching filter and rebuilds them as
// vectors, expert ratings included. filter.Limit caps the total; zero means every
// matching row. filter.Offset skips rows as it does for ListScores.
func StoredVectors(ctx context.Context, s ScoreLister, filter store.ScoreFilter) ([]scoring.ScoreVector, error) {
	total := filter.Limit
	page := filter
	var out []scoring.ScoreVector
	for {
		page.Limit = StorePageSize
		if total > 0 && total-len(out) < page.Limit {
			page.Limit = total - len(out)
		}
		records, err := s.ListScores(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("list scores at offset %d: %w", page.Offset, err)
		}
		for _, r := range records {
			out = append(out, r.Vector())
		}
		if len(records) < page.Limit || (total > 0 && len(out) >= total) {
			return out, nil
		}
		page.Offset += len(records)
	}
}
