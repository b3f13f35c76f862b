package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nao1215/scoutgraph/internal/model"
)

// LogActivity appends an entry to the activity log.
func (d *DB) LogActivity(ctx context.Context, e model.ActivityEntry) error {
	at := d.timestamp()
	if !e.CreatedAt.IsZero() {
		at = formatTimestamp(e.CreatedAt)
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO activity_log (action, handle, details, run_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Action, e.Handle, e.Details, e.RunID, at)
	if err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}

// RecentActivity returns the limit newest activity entries, newest first.
func (d *DB) RecentActivity(ctx context.Context, limit int) ([]model.ActivityEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, action, handle, details, run_id, created_at FROM activity_log
		 ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer rows.Close()

	var out []model.ActivityEntry
	for rows.Next() {
		var (
			e                      model.ActivityEntry
			handle, details, runID sql.NullString
			createdAt              string
		)
		if err := rows.Scan(&e.ID, &e.Action, &handle, &details, &runID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		e.Handle = handle.String
		e.Details = details.String
		e.RunID = runID.String
		e.CreatedAt = parseTimestamp(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
