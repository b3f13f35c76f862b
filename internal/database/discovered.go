package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nao1215/scoutgraph/internal/model"
)

// InsertDiscovered registers handle as discovered at level under parent.
// The registry insert and row insert are atomic. ErrDuplicateHandle is
// returned when another kind or a concurrent worker already owns the handle.
func (d *DB) InsertDiscovered(ctx context.Context, handle, parent string, level int) (model.DiscoveredHandle, error) {
	if level < 1 {
		return model.DiscoveredHandle{}, ErrInvalidLevel
	}

	var out model.DiscoveredHandle
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := d.register(ctx, tx, handle, model.KindDiscovered); err != nil {
			return err
		}
		now := d.timestamp()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO discovered (handle, status, level, parent_handle, discovered_at)
			 VALUES (?, ?, ?, ?, ?)`,
			handle, string(model.StatusPending), level, parent, now)
		if err != nil {
			return fmt.Errorf("failed to insert discovered handle: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to insert discovered handle: %w", err)
		}
		out = model.DiscoveredHandle{
			ID:           id,
			Handle:       handle,
			Status:       model.StatusPending,
			Level:        level,
			ParentHandle: parent,
			DiscoveredAt: parseTimestamp(now),
		}
		return nil
	})
	if err != nil {
		return model.DiscoveredHandle{}, err
	}
	return out, nil
}

// PendingDiscovered returns up to limit pending discovered handles with
// level <= maxLevel, shallowest first.
func (d *DB) PendingDiscovered(ctx context.Context, limit, maxLevel int) ([]model.DiscoveredHandle, error) {
	if limit <= 0 {
		return nil, nil
	}
	return d.queryDiscovered(ctx,
		discoveredColumns+` WHERE status = ? AND level <= ?
		 ORDER BY level, discovered_at, id LIMIT ?`,
		string(model.StatusPending), maxLevel, limit)
}

// GetDiscovered returns the discovered record for handle.
func (d *DB) GetDiscovered(ctx context.Context, handle string) (model.DiscoveredHandle, error) {
	rows, err := d.queryDiscovered(ctx, discoveredColumns+` WHERE handle = ?`, handle)
	if err != nil {
		return model.DiscoveredHandle{}, err
	}
	if len(rows) == 0 {
		return model.DiscoveredHandle{}, ErrNotFound
	}
	return rows[0], nil
}

// ListDiscovered returns discovered handles ordered by level.
// An empty status returns all.
func (d *DB) ListDiscovered(ctx context.Context, status model.Status, limit int) ([]model.DiscoveredHandle, error) {
	query := discoveredColumns
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY level, discovered_at, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return d.queryDiscovered(ctx, query, args...)
}

const discoveredColumns = `SELECT id, handle, status, level, parent_handle, metrics, rationale,
	discovered_at, checked_at FROM discovered`

func (d *DB) queryDiscovered(ctx context.Context, query string, args ...any) ([]model.DiscoveredHandle, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovered handles: %w", err)
	}
	defer rows.Close()

	var out []model.DiscoveredHandle
	for rows.Next() {
		var (
			h            model.DiscoveredHandle
			status       string
			metrics      sql.NullString
			rationale    sql.NullString
			discoveredAt string
			checkedAt    sql.NullString
		)
		if err := rows.Scan(&h.ID, &h.Handle, &status, &h.Level, &h.ParentHandle,
			&metrics, &rationale, &discoveredAt, &checkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan discovered handle: %w", err)
		}
		h.Status = model.Status(status)
		h.DiscoveredAt = parseTimestamp(discoveredAt)
		h.CheckedAt = parseNullTimestamp(checkedAt)

		if metrics.Valid && metrics.String != "" {
			var m model.ProfileMetrics
			if err := json.Unmarshal([]byte(metrics.String), &m); err == nil {
				h.Metrics = &m
			}
		}
		if rationale.Valid && rationale.String != "" {
			var r model.Rationale
			if err := json.Unmarshal([]byte(rationale.String), &r); err == nil {
				h.Rationale = &r
			}
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// DiscoveredResult carries the evaluation data stored with a final status.
type DiscoveredResult struct {
	Metrics   *model.ProfileMetrics
	Rationale *model.Rationale
}

// TransitionDiscovered moves a discovered handle forward to status to.
// result is stored when non-nil. Final statuses also set checked_at.
func (d *DB) TransitionDiscovered(ctx context.Context, id int64, to model.Status, result *DiscoveredResult) error {
	from := model.PredecessorsOf(to)
	if len(from) == 0 {
		return fmt.Errorf("%w: discovered handle cannot become %s", ErrInvalidTransition, to)
	}

	set := `status = ?`
	args := []any{string(to)}
	if to != model.StatusProcessing {
		set += `, checked_at = ?`
		args = append(args, d.timestamp())
	}
	if result != nil {
		if result.Metrics != nil {
			b, err := json.Marshal(result.Metrics)
			if err != nil {
				return fmt.Errorf("failed to serialize metrics: %w", err)
			}
			set += `, metrics = ?`
			args = append(args, string(b))
		}
		if result.Rationale != nil {
			b, err := json.Marshal(result.Rationale)
			if err != nil {
				return fmt.Errorf("failed to serialize rationale: %w", err)
			}
			set += `, rationale = ?`
			args = append(args, string(b))
		}
	}
	args = append(args, id)
	for _, s := range from {
		args = append(args, string(s))
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE discovered SET `+set+` WHERE id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to update discovered status: %w", err)
	}
	return d.checkTransition(ctx, res, "discovered", id, to)
}

// RequeueProcessing moves every seed and discovered record stuck in
// processing back to pending. It is the only backward transition and is
// never called automatically.
func (d *DB) RequeueProcessing(ctx context.Context) (int64, error) {
	var total int64
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"seeds", "discovered"} {
			res, err := tx.ExecContext(ctx,
				`UPDATE `+table+` SET status = ? WHERE status = ?`,
				string(model.StatusPending), string(model.StatusProcessing))
			if err != nil {
				return fmt.Errorf("failed to requeue %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to requeue %s: %w", table, err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// IsDuplicate reports whether err signals an already registered handle.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateHandle)
}
