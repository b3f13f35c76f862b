package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/scoutgraph/internal/model"
)

// AddSeed registers handle as a level 0 seed.
// It returns ErrDuplicateHandle when the handle is already known in any kind.
func (d *DB) AddSeed(ctx context.Context, handle string) (model.SeedHandle, error) {
	var seed model.SeedHandle
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if err := d.register(ctx, tx, handle, model.KindSeed); err != nil {
			return err
		}
		now := d.timestamp()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO seeds (handle, status, added_at) VALUES (?, ?, ?)`,
			handle, string(model.StatusPending), now)
		if err != nil {
			return fmt.Errorf("failed to insert seed: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to insert seed: %w", err)
		}
		seed = model.SeedHandle{
			ID:      id,
			Handle:  handle,
			Status:  model.StatusPending,
			AddedAt: parseTimestamp(now),
		}
		return nil
	})
	if err != nil {
		return model.SeedHandle{}, err
	}
	return seed, nil
}

// ListSeeds returns seeds in insertion order. An empty status returns all.
func (d *DB) ListSeeds(ctx context.Context, status model.Status) ([]model.SeedHandle, error) {
	query := `SELECT id, handle, status, added_at, checked_at FROM seeds`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY added_at, id`
	return d.querySeeds(ctx, query, args...)
}

// PendingSeeds returns up to limit pending seeds in stable insertion order.
func (d *DB) PendingSeeds(ctx context.Context, limit int) ([]model.SeedHandle, error) {
	if limit <= 0 {
		return nil, nil
	}
	return d.querySeeds(ctx,
		`SELECT id, handle, status, added_at, checked_at FROM seeds
		 WHERE status = ? ORDER BY added_at, id LIMIT ?`,
		string(model.StatusPending), limit)
}

func (d *DB) querySeeds(ctx context.Context, query string, args ...any) ([]model.SeedHandle, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query seeds: %w", err)
	}
	defer rows.Close()

	var out []model.SeedHandle
	for rows.Next() {
		var (
			s         model.SeedHandle
			status    string
			addedAt   string
			checkedAt sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Handle, &status, &addedAt, &checkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		s.Status = model.Status(status)
		s.AddedAt = parseTimestamp(addedAt)
		s.CheckedAt = parseNullTimestamp(checkedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// TransitionSeed moves a seed forward to status to. Seeds only accept
// processing and checked.
func (d *DB) TransitionSeed(ctx context.Context, id int64, to model.Status) error {
	if to != model.StatusProcessing && to != model.StatusChecked {
		return fmt.Errorf("%w: seed cannot become %s", ErrInvalidTransition, to)
	}
	from := model.PredecessorsOf(to)
	args := []any{string(to)}
	setChecked := ""
	if to == model.StatusChecked {
		setChecked = `, checked_at = ?`
		args = append(args, d.timestamp())
	}
	args = append(args, id)
	for _, s := range from {
		args = append(args, string(s))
	}

	res, err := d.db.ExecContext(ctx,
		`UPDATE seeds SET status = ?`+setChecked+`
		 WHERE id = ? AND status IN (`+placeholders(len(from))+`)`,
		args...)
	if err != nil {
		return fmt.Errorf("failed to update seed status: %w", err)
	}
	return d.checkTransition(ctx, res, "seeds", id, to)
}

// checkTransition turns a zero-row update into ErrNotFound or ErrInvalidTransition.
func (d *DB) checkTransition(ctx context.Context, res sql.Result, table string, id int64, to model.Status) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s status: %w", table, err)
	}
	if n > 0 {
		return nil
	}

	var current string
	err = d.db.QueryRowContext(ctx, `SELECT status FROM `+table+` WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s id %d: %w", table, id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read %s status: %w", table, err)
	}
	return fmt.Errorf("%w: %s id %d is %s, cannot become %s", ErrInvalidTransition, table, id, current, to)
}
