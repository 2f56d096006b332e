package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"alertline/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(id,recipient_id,title,message,category,is_read,read_at,deep_link,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		n.ID, n.RecipientID, n.Title, n.Message, n.Category, boolInt(n.IsRead),
		nullableStringPtr(n.ReadAt), nullableStringPtr(n.DeepLink), n.CreatedAt)
	return err
}

func (r Repo) GetNotification(ctx context.Context, recipientID, id string) (domain.Notification, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT id,recipient_id,title,message,category,is_read,read_at,deep_link,created_at FROM notifications WHERE id=? AND recipient_id=?`, id, recipientID)
	return scanNotification(row)
}

func scanNotification(row *sql.Row) (domain.Notification, error) {
	var n domain.Notification
	var read int
	var readAt, deepLink sql.NullString
	err := row.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Category, &read, &readAt, &deepLink, &n.CreatedAt)
	if err == sql.ErrNoRows {
		return n, ErrNotFound
	}
	if err != nil {
		return n, err
	}
	n.IsRead = read != 0
	if readAt.Valid {
		n.ReadAt = &readAt.String
	}
	if deepLink.Valid {
		n.DeepLink = &deepLink.String
	}
	return n, nil
}

type NotificationFilters struct {
	IsRead          *bool
	Category        string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

// ListNotifications returns one recipient's notifications, newest first.
func (r Repo) ListNotifications(ctx context.Context, recipientID string, f NotificationFilters) ([]domain.Notification, error) {
	clauses := []string{"recipient_id=?"}
	args := []any{recipientID}
	if f.IsRead != nil {
		clauses = append(clauses, "is_read=?")
		args = append(args, boolInt(*f.IsRead))
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,recipient_id,title,message,category,is_read,read_at,deep_link,created_at FROM notifications ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var read int
		var readAt, deepLink sql.NullString
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Message, &n.Category, &read, &readAt, &deepLink, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.IsRead = read != 0
		if readAt.Valid {
			n.ReadAt = &readAt.String
		}
		if deepLink.Valid {
			n.DeepLink = &deepLink.String
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// MarkNotificationRead flips one notification to read. Scoped to the acting
// recipient so a foreign id is indistinguishable from a missing one.
func (r Repo) MarkNotificationRead(ctx context.Context, recipientID, id, now string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1, read_at=? WHERE id=? AND recipient_id=?`, now, id, recipientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkNotificationUnread(ctx context.Context, recipientID, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=0, read_at=NULL WHERE id=? AND recipient_id=?`, id, recipientID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks the recipient's unread notifications read. With ids it
// touches only those of the recipient's notifications; ids owned by someone
// else are ignored, never updated.
func (r Repo) MarkAllRead(ctx context.Context, recipientID, now string, ids []string) (int64, error) {
	query := `UPDATE notifications SET is_read=1, read_at=? WHERE recipient_id=? AND is_read=0`
	args := []any{now, recipientID}
	if len(ids) > 0 {
		placeholders := strings.Repeat("?,", len(ids))
		query += fmt.Sprintf(` AND id IN (%s)`, placeholders[:len(placeholders)-1])
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r Repo) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE recipient_id=? AND is_read=0`, recipientID).Scan(&count)
	return count, err
}

// DeleteAllRead removes the recipient's read notifications and returns how
// many went away.
func (r Repo) DeleteAllRead(ctx context.Context, recipientID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notifications WHERE recipient_id=? AND is_read=1`, recipientID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
