package database

import (
	"context"
	"fmt"

	"github.com/nao1215/scoutgraph/internal/config"
)

// RunConfigValues returns every stored runtime configuration row.
func (d *DB) RunConfigValues(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key, value FROM run_config`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runtime config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan runtime config: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// LoadRunConfig reads and parses the runtime configuration snapshot.
func (d *DB) LoadRunConfig(ctx context.Context) (config.RunConfig, error) {
	values, err := d.RunConfigValues(ctx)
	if err != nil {
		return config.RunConfig{}, err
	}
	return config.ParseRunConfig(values)
}

// SetRunConfigValue validates and stores one runtime configuration value.
func (d *DB) SetRunConfigValue(ctx context.Context, key, value string) error {
	canonical, err := config.NormalizeRunValue(key, value)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx,
		`INSERT INTO run_config (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, canonical, d.timestamp())
	if err != nil {
		return fmt.Errorf("failed to store runtime config: %w", err)
	}
	return nil
}
