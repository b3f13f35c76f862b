package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nao1215/scoutgraph/internal/model"
)

// InsertAccepted stores an accepted candidate once per handle.
// It returns false without error when the handle was already accepted.
// On insert the handle registry entry is promoted to the accepted kind.
func (d *DB) InsertAccepted(ctx context.Context, c *model.AcceptedCandidate) (bool, error) {
	contacts, err := json.Marshal(c.Contacts)
	if err != nil {
		return false, fmt.Errorf("failed to serialize contacts: %w", err)
	}

	inserted := false
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		acceptedAt := c.AcceptedAt
		if acceptedAt.IsZero() {
			acceptedAt = d.now()
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO accepted (
				handle, display_name, email, phone, messaging_handle, messaging_link,
				chat_app_link, website, contacts, followers, following, posts,
				avg_recent_views, engagement_rate, level, bio, verified, business,
				notes, accepted_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(handle) DO NOTHING`,
			c.Handle, c.DisplayName, c.Contacts.Email, c.Contacts.Phone,
			c.Contacts.MessagingHandle, c.Contacts.MessagingLink, c.Contacts.ChatAppLink,
			c.Contacts.Website, string(contacts), c.Metrics.Followers, c.Metrics.Following,
			c.Metrics.Posts, c.Metrics.AvgRecentViews, c.Metrics.EngagementRatePct,
			c.Level, c.Bio, boolToInt(c.Verified), boolToInt(c.Business), c.Notes,
			formatTimestamp(acceptedAt))
		if err != nil {
			return fmt.Errorf("failed to insert accepted candidate: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to insert accepted candidate: %w", err)
		}
		if n == 0 {
			return nil
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to insert accepted candidate: %w", err)
		}
		c.ID = id
		c.AcceptedAt = parseTimestamp(formatTimestamp(acceptedAt))
		inserted = true
		return d.promote(ctx, tx, c.Handle, model.KindAccepted)
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

const acceptedColumns = `SELECT id, handle, display_name, contacts, followers, following, posts,
	avg_recent_views, engagement_rate, level, bio, verified, business, notes, accepted_at
	FROM accepted`

// GetAccepted returns the accepted candidate for handle.
func (d *DB) GetAccepted(ctx context.Context, handle string) (model.AcceptedCandidate, error) {
	rows, err := d.queryAccepted(ctx, acceptedColumns+` WHERE handle = ?`, handle)
	if err != nil {
		return model.AcceptedCandidate{}, err
	}
	if len(rows) == 0 {
		return model.AcceptedCandidate{}, ErrNotFound
	}
	return rows[0], nil
}

// ListAccepted returns every accepted candidate, oldest first.
func (d *DB) ListAccepted(ctx context.Context) ([]model.AcceptedCandidate, error) {
	return d.queryAccepted(ctx, acceptedColumns+` ORDER BY accepted_at, id`)
}

// RecentAccepted returns the n most recently accepted candidates, newest first.
func (d *DB) RecentAccepted(ctx context.Context, n int) ([]model.AcceptedCandidate, error) {
	if n <= 0 {
		return nil, nil
	}
	return d.queryAccepted(ctx, acceptedColumns+` ORDER BY accepted_at DESC, id DESC LIMIT ?`, n)
}

// AnnotateAccepted replaces the notes of an accepted candidate.
func (d *DB) AnnotateAccepted(ctx context.Context, handle, notes string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE accepted SET notes = ? WHERE handle = ?`, notes, handle)
	if err != nil {
		return fmt.Errorf("failed to annotate accepted candidate: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to annotate accepted candidate: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("accepted %s: %w", handle, ErrNotFound)
	}
	return nil
}

func (d *DB) queryAccepted(ctx context.Context, query string, args ...any) ([]model.AcceptedCandidate, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accepted candidates: %w", err)
	}
	defer rows.Close()

	var out []model.AcceptedCandidate
	for rows.Next() {
		var (
			c           model.AcceptedCandidate
			displayName sql.NullString
			contacts    sql.NullString
			bio         sql.NullString
			notes       sql.NullString
			verified    int
			business    int
			acceptedAt  string
		)
		if err := rows.Scan(&c.ID, &c.Handle, &displayName, &contacts,
			&c.Metrics.Followers, &c.Metrics.Following, &c.Metrics.Posts,
			&c.Metrics.AvgRecentViews, &c.Metrics.EngagementRatePct, &c.Level,
			&bio, &verified, &business, &notes, &acceptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan accepted candidate: %w", err)
		}
		c.DisplayName = displayName.String
		c.Bio = bio.String
		c.Notes = notes.String
		c.Verified = verified != 0
		c.Business = business != 0
		c.AcceptedAt = parseTimestamp(acceptedAt)
		if contacts.Valid && contacts.String != "" {
			if err := json.Unmarshal([]byte(contacts.String), &c.Contacts); err != nil {
				return nil, fmt.Errorf("failed to parse contacts of %s: %w", c.Handle, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
