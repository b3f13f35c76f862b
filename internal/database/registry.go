package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/scoutgraph/internal/model"
)

// ExistsAnywhere reports whether handle is registered as a seed,
// discovered or accepted record.
func (d *DB) ExistsAnywhere(ctx context.Context, handle string) (bool, error) {
	_, ok, err := d.RegistryKind(ctx, handle)
	return ok, err
}

// RegistryKind returns the kind a handle currently occupies.
func (d *DB) RegistryKind(ctx context.Context, handle string) (model.Kind, bool, error) {
	var kind string
	err := d.db.QueryRowContext(ctx,
		`SELECT kind FROM handle_registry WHERE handle = ?`, handle).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query handle registry: %w", err)
	}
	return model.Kind(kind), true, nil
}

// register inserts handle into the registry with kind. It returns
// ErrDuplicateHandle when the handle is already present.
func (d *DB) register(ctx context.Context, tx *sql.Tx, handle string, kind model.Kind) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO handle_registry (handle, kind, registered_at) VALUES (?, ?, ?)
		 ON CONFLICT(handle) DO NOTHING`,
		handle, string(kind), d.timestamp())
	if err != nil {
		return fmt.Errorf("failed to register handle: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to register handle: %w", err)
	}
	if n == 0 {
		return ErrDuplicateHandle
	}
	return nil
}

// promote moves handle to kind, registering it if necessary.
func (d *DB) promote(ctx context.Context, tx *sql.Tx, handle string, kind model.Kind) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO handle_registry (handle, kind, registered_at) VALUES (?, ?, ?)
		 ON CONFLICT(handle) DO UPDATE SET kind = excluded.kind`,
		handle, string(kind), d.timestamp())
	if err != nil {
		return fmt.Errorf("failed to promote handle: %w", err)
	}
	return nil
}

// RegistryCounts returns the number of registered handles per kind.
func (d *DB) RegistryCounts(ctx context.Context) (map[model.Kind]int64, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM handle_registry GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count registry: %w", err)
	}
	defer rows.Close()

	out := make(map[model.Kind]int64)
	for rows.Next() {
		var kind string
		var n int64
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("failed to scan registry count: %w", err)
		}
		out[model.Kind(kind)] = n
	}
	return out, rows.Err()
}
