package repo_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"alertline/internal/db"
	"alertline/internal/domain"
	"alertline/internal/events"
	"alertline/internal/migrate"
	"alertline/internal/repo"
)

func newRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}
}

func seedUsers(t *testing.T, r repo.Repo, ids ...string) {
	t.Helper()
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	for _, id := range ids {
		u := domain.User{ID: id, DisplayName: id, IsActive: true, CreatedAt: "2026-03-01T00:00:00Z"}
		if err := r.InsertUserTx(ctx, tx, u); err != nil {
			t.Fatalf("insert user %s: %v", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
}

func seedNotification(t *testing.T, r repo.Repo, recipient, category, createdAt string) string {
	t.Helper()
	n := domain.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipient,
		Title:       "t",
		Message:     "m",
		Category:    category,
		CreatedAt:   createdAt,
	}
	if err := r.InsertNotification(context.Background(), n); err != nil {
		t.Fatalf("insert notification: %v", err)
	}
	return n.ID
}

func TestMarkReadScopedToRecipient(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedUsers(t, r, "a", "b")
	id := seedNotification(t, r, "a", "sales", "2026-03-01T10:00:00Z")

	if err := r.MarkNotificationRead(ctx, "b", id, "2026-03-01T11:00:00Z"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-recipient mark: %v", err)
	}
	if err := r.MarkNotificationRead(ctx, "a", id, "2026-03-01T11:00:00Z"); err != nil {
		t.Fatalf("own mark: %v", err)
	}
	n, err := r.GetNotification(ctx, "a", id)
	if err != nil {
		t.Fatal(err)
	}
	if !n.IsRead || n.ReadAt == nil || *n.ReadAt != "2026-03-01T11:00:00Z" {
		t.Fatalf("read state: %+v", n)
	}

	if err := r.MarkNotificationUnread(ctx, "a", id); err != nil {
		t.Fatal(err)
	}
	n, _ = r.GetNotification(ctx, "a", id)
	if n.IsRead || n.ReadAt != nil {
		t.Fatalf("unread state: %+v", n)
	}
}

func TestMarkAllReadIsolation(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedUsers(t, r, "a", "b")
	for i := 0; i < 3; i++ {
		seedNotification(t, r, "a", "sales", fmt.Sprintf("2026-03-01T10:0%d:00Z", i))
	}
	seedNotification(t, r, "b", "sales", "2026-03-01T10:00:00Z")

	n, err := r.MarkAllRead(ctx, "a", "2026-03-01T12:00:00Z", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("marked %d", n)
	}
	if c, _ := r.UnreadCount(ctx, "a"); c != 0 {
		t.Fatalf("a unread %d", c)
	}
	if c, _ := r.UnreadCount(ctx, "b"); c != 1 {
		t.Fatalf("b unread %d", c)
	}
}

func TestMarkAllReadRestrictedToIDs(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedUsers(t, r, "a", "b")
	first := seedNotification(t, r, "a", "sales", "2026-03-01T10:00:00Z")
	seedNotification(t, r, "a", "sales", "2026-03-01T10:01:00Z")
	other := seedNotification(t, r, "b", "sales", "2026-03-01T10:00:00Z")

	// Including another recipient's id must not touch their row.
	n, err := r.MarkAllRead(ctx, "a", "2026-03-01T12:00:00Z", []string{first, other})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("marked %d", n)
	}
	if c, _ := r.UnreadCount(ctx, "a"); c != 1 {
		t.Fatalf("a unread %d", c)
	}
	if c, _ := r.UnreadCount(ctx, "b"); c != 1 {
		t.Fatalf("b unread %d", c)
	}
}

func TestDeleteAllReadIsolation(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedUsers(t, r, "a", "b")
	read := seedNotification(t, r, "a", "sales", "2026-03-01T10:00:00Z")
	seedNotification(t, r, "a", "sales", "2026-03-01T10:01:00Z")
	otherRead := seedNotification(t, r, "b", "sales", "2026-03-01T10:00:00Z")
	_ = r.MarkNotificationRead(ctx, "a", read, "2026-03-01T11:00:00Z")
	_ = r.MarkNotificationRead(ctx, "b", otherRead, "2026-03-01T11:00:00Z")

	n, err := r.DeleteAllRead(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("deleted %d", n)
	}
	if _, err := r.GetNotification(ctx, "a", read); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("read row still present: %v", err)
	}
	if _, err := r.GetNotification(ctx, "b", otherRead); err != nil {
		t.Fatalf("b's read row deleted: %v", err)
	}
	items, _ := r.ListNotifications(ctx, "a", repo.NotificationFilters{})
	if len(items) != 1 {
		t.Fatalf("a has %d rows left", len(items))
	}
}

func TestListNotificationsFilters(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	seedUsers(t, r, "a")
	sales := seedNotification(t, r, "a", "sales", "2026-03-01T10:00:00Z")
	seedNotification(t, r, "a", "hr", "2026-03-01T10:01:00Z")
	seedNotification(t, r, "a", "sales", "2026-03-01T10:02:00Z")
	_ = r.MarkNotificationRead(ctx, "a", sales, "2026-03-01T11:00:00Z")

	all, err := r.ListNotifications(ctx, "a", repo.NotificationFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("all %d", len(all))
	}
	// newest first
	if all[0].CreatedAt < all[1].CreatedAt || all[1].CreatedAt < all[2].CreatedAt {
		t.Fatalf("not sorted desc: %+v", all)
	}

	unreadOnly := false
	items, _ := r.ListNotifications(ctx, "a", repo.NotificationFilters{IsRead: &unreadOnly})
	if len(items) != 2 {
		t.Fatalf("unread filter %d", len(items))
	}

	items, _ = r.ListNotifications(ctx, "a", repo.NotificationFilters{Category: "hr"})
	if len(items) != 1 || items[0].Category != "hr" {
		t.Fatalf("category filter: %+v", items)
	}

	items, _ = r.ListNotifications(ctx, "a", repo.NotificationFilters{Limit: 2})
	if len(items) != 2 {
		t.Fatalf("limit %d", len(items))
	}
	// cursor continues after the last row of the first page
	last := items[1]
	rest, _ := r.ListNotifications(ctx, "a", repo.NotificationFilters{Limit: 2, CursorCreatedAt: last.CreatedAt, CursorID: last.ID})
	if len(rest) != 1 {
		t.Fatalf("cursor page %d", len(rest))
	}
}

func TestLatestEventsCursorPaging(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	w := events.Writer{DB: r.DB}
	for i := 0; i < 5; i++ {
		if err := w.AppendDB(ctx, "rule.created", "rule", fmt.Sprintf("r-%d", i), "root", nil); err != nil {
			t.Fatalf("append event: %v", err)
		}
	}

	first, err := r.LatestEventsFrom(ctx, 2, 0, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("first page %d", len(first))
	}
	if first[0].ID <= first[1].ID {
		t.Fatalf("not newest first: %d, %d", first[0].ID, first[1].ID)
	}

	rest, err := r.LatestEventsFrom(ctx, 10, first[1].ID, "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 3 {
		t.Fatalf("second page %d", len(rest))
	}
	for _, e := range rest {
		if e.ID >= first[1].ID {
			t.Fatalf("cursor page returned id %d not below %d", e.ID, first[1].ID)
		}
	}
}

func TestFindActiveRulesOrderedOldestFirst(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	for i, name := range []string{"first", "second", "third"} {
		rule := domain.NotificationRule{
			ID:            uuid.NewString(),
			EntityType:    "order",
			StatusField:   "status",
			TriggerStatus: "confirmed",
			Name:          name,
			IsActive:      name != "third",
			CreatedBy:     "root",
			CreatedAt:     fmt.Sprintf("2026-03-01T10:0%d:00Z", i),
			UpdatedAt:     fmt.Sprintf("2026-03-01T10:0%d:00Z", i),
		}
		if err := r.InsertRuleTx(ctx, tx, rule); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	rules, err := r.FindActiveRules(ctx, "order", "status", "confirmed")
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("active rules %d", len(rules))
	}
	if rules[0].Name != "first" || rules[1].Name != "second" {
		t.Fatalf("order: %s, %s", rules[0].Name, rules[1].Name)
	}
}
