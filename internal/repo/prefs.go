package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"alertline/internal/domain"
)

func (r Repo) UpsertPreferences(ctx context.Context, userID string, muted []string) (domain.Preferences, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Preferences{}, err
	}
	defer tx.Rollback()
	p, err := r.UpsertPreferencesTx(ctx, tx, userID, muted)
	if err != nil {
		return domain.Preferences{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Preferences{}, err
	}
	return p, nil
}

func (r Repo) UpsertPreferencesTx(ctx context.Context, tx *sql.Tx, userID string, muted []string) (domain.Preferences, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	if err := r.EnsureUser(ctx, tx, userID, now); err != nil {
		return domain.Preferences{}, err
	}
	if muted == nil {
		muted = []string{}
	}
	payload, err := json.Marshal(muted)
	if err != nil {
		return domain.Preferences{}, err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO user_prefs(user_id, muted_categories, updated_at)
VALUES (?,?,?)
ON CONFLICT(user_id) DO UPDATE SET muted_categories=excluded.muted_categories, updated_at=excluded.updated_at`,
		userID, string(payload), now)
	if err != nil {
		return domain.Preferences{}, err
	}
	return domain.Preferences{UserID: userID, MutedCategories: muted, UpdatedAt: now}, nil
}

func (r Repo) GetPreferences(ctx context.Context, userID string) (domain.Preferences, error) {
	var p domain.Preferences
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT user_id, muted_categories, updated_at FROM user_prefs WHERE user_id=?`, userID).
		Scan(&p.UserID, &payload, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(payload), &p.MutedCategories); err != nil {
		return p, err
	}
	return p, nil
}

// CategoryMuted reports whether the user muted the category. Missing prefs
// mean nothing is muted.
func (r Repo) CategoryMuted(ctx context.Context, userID, category string) (bool, error) {
	p, err := r.GetPreferences(ctx, userID)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, c := range p.MutedCategories {
		if c == category {
			return true, nil
		}
	}
	return false, nil
}
