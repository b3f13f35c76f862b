package database

import (
	"context"
	"fmt"

	"github.com/nao1215/scoutgraph/internal/model"
)

// Stats returns frontier, result and identity counters.
func (d *DB) Stats(ctx context.Context) (model.Stats, error) {
	s := model.Stats{
		DiscoveredByState: make(map[model.Status]int64),
		DiscoveredByLevel: make(map[int]int64),
	}

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&s.SeedsTotal, `SELECT COUNT(*) FROM seeds`, nil},
		{&s.SeedsPending, `SELECT COUNT(*) FROM seeds WHERE status = ?`, []any{string(model.StatusPending)}},
		{&s.DiscoveredTotal, `SELECT COUNT(*) FROM discovered`, nil},
		{&s.AcceptedTotal, `SELECT COUNT(*) FROM accepted`, nil},
		{&s.IdentitiesTotal, `SELECT COUNT(*) FROM identities`, nil},
		{&s.IdentitiesActive, `SELECT COUNT(*) FROM identities WHERE status = ?`, []any{string(model.IdentityActive)}},
		{&s.Processing, `SELECT (SELECT COUNT(*) FROM seeds WHERE status = ?) + (SELECT COUNT(*) FROM discovered WHERE status = ?)`,
			[]any{string(model.StatusProcessing), string(model.StatusProcessing)}},
	}
	for _, c := range counts {
		if err := d.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return model.Stats{}, fmt.Errorf("failed to count: %w", err)
		}
	}

	rows, err := d.db.QueryContext(ctx, `SELECT status, level, COUNT(*) FROM discovered GROUP BY status, level`)
	if err != nil {
		return model.Stats{}, fmt.Errorf("failed to group discovered handles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			level  int
			n      int64
		)
		if err := rows.Scan(&status, &level, &n); err != nil {
			return model.Stats{}, fmt.Errorf("failed to scan discovered group: %w", err)
		}
		s.DiscoveredByState[model.Status(status)] += n
		s.DiscoveredByLevel[level] += n
	}
	return s, rows.Err()
}
