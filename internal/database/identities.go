package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nao1215/scoutgraph/internal/model"
)

// AddIdentity stores a new identity. CredentialRef must already be sealed.
func (d *DB) AddIdentity(ctx context.Context, id model.Identity) (model.Identity, error) {
	if id.Status == "" {
		id.Status = model.IdentityActive
	}
	now := d.timestamp()
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO identities (handle, credential_ref, status, added_at, proxy_url)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT(handle) DO NOTHING`,
		id.Handle, id.CredentialRef, string(id.Status), now, id.ProxyURL)
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to insert identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to insert identity: %w", err)
	}
	if n == 0 {
		return model.Identity{}, fmt.Errorf("identity %s: %w", id.Handle, ErrDuplicateIdentity)
	}
	rowID, err := res.LastInsertId()
	if err != nil {
		return model.Identity{}, fmt.Errorf("failed to insert identity: %w", err)
	}
	id.ID = rowID
	id.AddedAt = parseTimestamp(now)
	return id, nil
}

// ListIdentities returns identities in insertion order. With statuses given,
// only identities in one of them are returned.
func (d *DB) ListIdentities(ctx context.Context, statuses ...model.IdentityStatus) ([]model.Identity, error) {
	query := `SELECT id, handle, credential_ref, status, requests_made, last_used_at, added_at, proxy_url
		FROM identities`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY id`
	return d.queryIdentities(ctx, query, args...)
}

func (d *DB) queryIdentities(ctx context.Context, query string, args ...any) ([]model.Identity, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	var out []model.Identity
	for rows.Next() {
		var (
			id       model.Identity
			status   string
			lastUsed sql.NullString
			addedAt  string
			proxyURL sql.NullString
		)
		if err := rows.Scan(&id.ID, &id.Handle, &id.CredentialRef, &status, &id.RequestsMade,
			&lastUsed, &addedAt, &proxyURL); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		id.Status = model.IdentityStatus(status)
		id.LastUsedAt = parseNullTimestamp(lastUsed)
		id.AddedAt = parseTimestamp(addedAt)
		id.ProxyURL = proxyURL.String
		out = append(out, id)
	}
	return out, rows.Err()
}

// GetIdentity returns the identity with handle.
func (d *DB) GetIdentity(ctx context.Context, handle string) (model.Identity, error) {
	rows, err := d.queryIdentities(ctx,
		`SELECT id, handle, credential_ref, status, requests_made, last_used_at, added_at, proxy_url
		 FROM identities WHERE handle = ?`, handle)
	if err != nil {
		return model.Identity{}, err
	}
	if len(rows) == 0 {
		return model.Identity{}, fmt.Errorf("identity %s: %w", handle, ErrNotFound)
	}
	return rows[0], nil
}

// SetIdentityStatus changes the administrative status of an identity.
func (d *DB) SetIdentityStatus(ctx context.Context, handle string, status model.IdentityStatus) error {
	res, err := d.db.ExecContext(ctx, `UPDATE identities SET status = ? WHERE handle = ?`, string(status), handle)
	if err != nil {
		return fmt.Errorf("failed to update identity status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update identity status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("identity %s: %w", handle, ErrNotFound)
	}
	return nil
}

// RecordUsage counts one successful remote call served by handle.
func (d *DB) RecordUsage(ctx context.Context, handle string, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE identities SET requests_made = requests_made + 1, last_used_at = ? WHERE handle = ?`,
		formatTimestamp(at), handle)
	if err != nil {
		return fmt.Errorf("failed to record identity usage: %w", err)
	}
	return nil
}
