package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"alertline/internal/config"
	"alertline/internal/db"
	"alertline/internal/engine"
	"alertline/internal/engine/auth"
	"alertline/internal/logging"
	"alertline/internal/migrate"
	"alertline/internal/repo"
)

func newTestEnv(t *testing.T) (*engine.Engine, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("alertline")
	e := engine.New(conn, cfg, logging.Nop())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	step := 0
	e.Now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		step++
		return base.Add(time.Duration(step) * time.Second)
	}
	ctx := context.Background()
	if _, err := e.CreateUser(ctx, "root", "Root", []string{"admin"}, "system"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return e, ctx
}

func unread(t *testing.T, e *engine.Engine, ctx context.Context, userID string) int {
	t.Helper()
	n, err := e.Repo.UnreadCount(ctx, userID)
	if err != nil {
		t.Fatalf("unread count for %s: %v", userID, err)
	}
	return n
}

func TestOrderTransitionNotifiesRoleHolders(t *testing.T) {
	e, ctx := newTestEnv(t)
	if _, err := e.CreateUser(ctx, "sales1", "Sales One", []string{"sales"}, "root"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateRule(ctx, engine.RuleCreateOptions{
		EntityType:    "order",
		TriggerStatus: "confirmed",
		Name:          "confirmations",
		Recipients:    []engine.RecipientOptions{{Mode: "role", RoleID: "sales"}},
		ActorID:       "root",
	}); err != nil {
		t.Fatalf("create rule: %v", err)
	}

	o, err := e.CreateOrder(ctx, engine.OrderCreateOptions{Number: "SO-100", ActorID: "root"})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	e.Dispatcher.Wait()
	if n := unread(t, e, ctx, "sales1"); n != 0 {
		t.Fatalf("creation produced %d notifications", n)
	}

	if _, err := e.SetOrderStatus(ctx, o.ID, "confirmed", "root"); err != nil {
		t.Fatalf("set status: %v", err)
	}
	e.Dispatcher.Wait()

	items, err := e.Repo.ListNotifications(ctx, "sales1", repo.NotificationFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one notification, got %d", len(items))
	}
	n := items[0]
	if n.Title != "Order: status changed to 'Confirmed'" {
		t.Fatalf("title %q", n.Title)
	}
	if !strings.Contains(n.Message, "SO-100") || !strings.Contains(n.Message, "'Open'") || !strings.Contains(n.Message, "'Confirmed'") {
		t.Fatalf("message %q", n.Message)
	}
	if n.DeepLink == nil || *n.DeepLink != "/orders/"+o.ID {
		t.Fatalf("deep link %v", n.DeepLink)
	}
	if n.Category != "sales" {
		t.Fatalf("category %q", n.Category)
	}
}

func TestUnchangedStatusWriteIsSilent(t *testing.T) {
	e, ctx := newTestEnv(t)
	if _, err := e.CreateUser(ctx, "sales1", "", []string{"sales"}, "root"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateRule(ctx, engine.RuleCreateOptions{
		EntityType:    "order",
		TriggerStatus: "confirmed",
		Name:          "confirmations",
		Recipients:    []engine.RecipientOptions{{Mode: "role", RoleID: "sales"}},
		ActorID:       "root",
	}); err != nil {
		t.Fatal(err)
	}
	o, err := e.CreateOrder(ctx, engine.OrderCreateOptions{Number: "SO-1", ActorID: "root"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetOrderStatus(ctx, o.ID, "confirmed", "root"); err != nil {
		t.Fatal(err)
	}
	e.Dispatcher.Wait()
	if n := unread(t, e, ctx, "sales1"); n != 1 {
		t.Fatalf("unread %d after transition", n)
	}

	// Writing the same value again is not a transition.
	if _, err := e.SetOrderStatus(ctx, o.ID, "confirmed", "root"); err != nil {
		t.Fatal(err)
	}
	e.Dispatcher.Wait()
	if n := unread(t, e, ctx, "sales1"); n != 1 {
		t.Fatalf("unchanged write raised unread to %d", n)
	}
}

func TestConcurrentStatusWritesNotifyOnce(t *testing.T) {
	e, ctx := newTestEnv(t)
	if _, err := e.CreateUser(ctx, "sales1", "", []string{"sales"}, "root"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateRule(ctx, engine.RuleCreateOptions{
		EntityType:    "order",
		TriggerStatus: "confirmed",
		Name:          "confirmations",
		Recipients:    []engine.RecipientOptions{{Mode: "role", RoleID: "sales"}},
		ActorID:       "root",
	}); err != nil {
		t.Fatal(err)
	}
	o, err := e.CreateOrder(ctx, engine.OrderCreateOptions{Number: "SO-7", ActorID: "root"})
	if err != nil {
		t.Fatal(err)
	}

	// Two writers race to the same target status. The pre-image is read
	// inside the write transaction, so at most one of them observes a real
	// transition; the loser either sees "confirmed" already or fails on the
	// lock and rolls back.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.SetOrderStatus(ctx, o.ID, "confirmed", "root")
		}(i)
	}
	wg.Wait()
	if errs[0] != nil && errs[1] != nil {
		t.Fatalf("both writes failed: %v / %v", errs[0], errs[1])
	}
	e.Dispatcher.Wait()
	if n := unread(t, e, ctx, "sales1"); n != 1 {
		t.Fatalf("one logical transition produced %d notifications", n)
	}
}

func TestAssigneeRecipient(t *testing.T) {
	e, ctx := newTestEnv(t)
	if _, err := e.CreateUser(ctx, "bob", "", nil, "root"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.CreateRule(ctx, engine.RuleCreateOptions{
		EntityType:    "ticket",
		TriggerStatus: "resolved",
		Name:          "tell-handler",
		Recipients:    []engine.RecipientOptions{{Mode: "assignee"}},
		ActorID:       "root",
	}); err != nil {
		t.Fatal(err)
	}
	tk, err := e.CreateTicket(ctx, engine.TicketCreateOptions{Number: "T-1", Subject: "printer", Handler: "bob", ActorID: "root"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetTicketStatus(ctx, tk.ID, "resolved", "root"); err != nil {
		t.Fatal(err)
	}
	e.Dispatcher.Wait()
	if n := unread(t, e, ctx, "bob"); n != 1 {
		t.Fatalf("assignee unread %d", n)
	}
}

func TestDeactivatedRuleDoesNotFire(t *testing.T) {
	e, ctx := newTestEnv(t)
	if _, err := e.CreateUser(ctx, "u1", "", nil, "root"); err != nil {
		t.Fatal(err)
	}
	rule, err := e.CreateRule(ctx, engine.RuleCreateOptions{
		EntityType:    "quotation",
		TriggerStatus: "accepted",
		Name:          "wins",
		Recipients:    []engine.RecipientOptions{{Mode: "user", UserID: "u1"}},
		ActorID:       "root",
	})
	if err != nil {
		t.Fatal(err)
	}
	off := false
	if _, err := e.UpdateRule(ctx, engine.RuleUpdateOptions{ID: rule.ID, IsActive: &off, ActorID: "root"}); err != nil {
		t.Fatal(err)
	}

	q, err := e.CreateQuotation(ctx, engine.QuotationCreateOptions{Number: "Q-1", ActorID: "root"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.SetQuotationStatus(ctx, q.ID, "accepted", "root"); err != nil {
		t.Fatal(err)
	}
	e.Dispatcher.Wait()
	if n := unread(t, e, ctx, "u1"); n != 0 {
		t.Fatalf("inactive rule fired, unread %d", n)
	}
}

func TestCreateRuleValidation(t *testing.T) {
	e, ctx := newTestEnv(t)
	base := engine.RuleCreateOptions{
		EntityType:    "order",
		TriggerStatus: "confirmed",
		Name:          "r",
		Recipients:    []engine.RecipientOptions{{Mode: "role", RoleID: "sales"}},
		ActorID:       "root",
	}

	bad := base
	bad.EntityType = "invoice"
	if _, err := e.CreateRule(ctx, bad); err == nil {
		t.Fatal("unknown entity type accepted")
	}

	bad = base
	bad.TriggerStatus = "exploded"
	if _, err := e.CreateRule(ctx, bad); err == nil {
		t.Fatal("invalid status accepted")
	}

	bad = base
	bad.MessageTemplate = "hello {nobody}"
	if _, err := e.CreateRule(ctx, bad); err == nil {
		t.Fatal("unknown placeholder accepted")
	}

	bad = base
	bad.Recipients = nil
	if _, err := e.CreateRule(ctx, bad); err == nil {
		t.Fatal("empty recipient list accepted")
	}

	bad = base
	bad.Recipients = []engine.RecipientOptions{{Mode: "role", RoleID: "wizards"}}
	if _, err := e.CreateRule(ctx, bad); err == nil {
		t.Fatal("unknown role accepted")
	}

	bad = base
	bad.Recipients = []engine.RecipientOptions{{Mode: "user", UserID: "ghost"}}
	if _, err := e.CreateRule(ctx, bad); err == nil {
		t.Fatal("unknown user accepted")
	}
}

func TestRuleAdministrationRequiresAdmin(t *testing.T) {
	e, ctx := newTestEnv(t)
	if _, err := e.CreateUser(ctx, "peon", "", []string{"sales"}, "root"); err != nil {
		t.Fatal(err)
	}
	_, err := e.CreateRule(ctx, engine.RuleCreateOptions{
		EntityType:    "order",
		TriggerStatus: "confirmed",
		Name:          "nope",
		Recipients:    []engine.RecipientOptions{{Mode: "role", RoleID: "sales"}},
		ActorID:       "peon",
	})
	var fe auth.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if fe.Role != "admin" {
		t.Fatalf("forbidden role %q", fe.Role)
	}
}

func TestUpdateRuleClearsTemplate(t *testing.T) {
	e, ctx := newTestEnv(t)
	rule, err := e.CreateRule(ctx, engine.RuleCreateOptions{
		EntityType:      "order",
		TriggerStatus:   "shipped",
		Name:            "shipping",
		MessageTemplate: "{object} shipped",
		Recipients:      []engine.RecipientOptions{{Mode: "creator"}},
		ActorID:         "root",
	})
	if err != nil {
		t.Fatal(err)
	}
	empty := ""
	updated, err := e.UpdateRule(ctx, engine.RuleUpdateOptions{ID: rule.ID, MessageTemplate: &empty, ActorID: "root"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.MessageTemplate != nil {
		t.Fatalf("template not cleared: %q", *updated.MessageTemplate)
	}
	got, err := e.Repo.GetRule(ctx, rule.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.MessageTemplate != nil {
		t.Fatal("template survived in storage")
	}
}

func TestDeleteRuleRemovesRecipients(t *testing.T) {
	e, ctx := newTestEnv(t)
	rule, err := e.CreateRule(ctx, engine.RuleCreateOptions{
		EntityType:    "ticket",
		TriggerStatus: "closed",
		Name:          "closures",
		Recipients:    []engine.RecipientOptions{{Mode: "creator"}},
		ActorID:       "root",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := e.DeleteRule(ctx, rule.ID, "root"); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Repo.GetRule(ctx, rule.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMintAPIKeyRoundTrip(t *testing.T) {
	e, ctx := newTestEnv(t)
	key, raw, err := e.MintAPIKey(ctx, "root", "ci")
	if err != nil {
		t.Fatal(err)
	}
	if raw == "" || key.KeyHash == repo.HashAPIKey("") {
		t.Fatal("empty secret")
	}
	got, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(raw))
	if err != nil {
		t.Fatal(err)
	}
	if got.UserID != "root" || got.ID != key.ID {
		t.Fatalf("lookup mismatch: %+v", got)
	}
}
