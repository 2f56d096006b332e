// Package dispatch runs the pipeline from a committed status transition to
// persisted notifications: rule lookup, recipient resolution, rendering and
// the per-recipient inserts.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"alertline/internal/config"
	"alertline/internal/domain"
	"alertline/internal/events"
	"alertline/internal/registry"
	"alertline/internal/render"
	"alertline/internal/repo"
	"alertline/internal/watch"
)

// seenLimit bounds the in-process set of dispatched transition keys.
const seenLimit = 4096

type Dispatcher struct {
	Repo     repo.Repo
	Registry *registry.Registry
	Events   events.Writer
	Config   *config.Config
	Log      *slog.Logger
	Now      func() time.Time

	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	wg    sync.WaitGroup
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DispatchAsync runs Dispatch on its own goroutine. The entity write that
// produced the event has already committed; nothing here can fail it.
func (d *Dispatcher) DispatchAsync(event domain.TransitionEvent, snap watch.Snapshot) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.Log.Error("dispatch panic", "entity_type", event.EntityType, "entity_id", event.EntityID, "panic", r)
			}
		}()
		d.Dispatch(context.Background(), event, snap)
	}()
}

// Wait blocks until all async dispatches have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch delivers notifications for one transition. Every failure mode is
// a logged no-op; the pipeline never propagates an error to the write path.
func (d *Dispatcher) Dispatch(ctx context.Context, event domain.TransitionEvent, snap watch.Snapshot) {
	if !d.markSeen(event.Key()) {
		d.Log.Debug("transition already dispatched", "key", event.Key())
		return
	}
	desc, ok := d.Registry.Lookup(event.EntityType)
	if !ok {
		d.Log.Warn("transition for unknown entity type", "entity_type", event.EntityType, "entity_id", event.EntityID)
		return
	}
	rules, err := d.Repo.FindActiveRules(ctx, event.EntityType, event.StatusField, event.NewStatus)
	if err != nil {
		d.Log.Error("rule lookup failed", "entity_type", event.EntityType, "trigger_status", event.NewStatus, "error", err)
		return
	}
	if len(rules) == 0 {
		return
	}

	// First matching rule wins per recipient; rules arrive oldest first.
	type delivery struct {
		rule domain.NotificationRule
	}
	byRecipient := map[string]delivery{}
	var recipientOrder []string
	for _, rule := range rules {
		for userID := range d.resolve(ctx, rule, snap) {
			if _, dup := byRecipient[userID]; dup {
				continue
			}
			byRecipient[userID] = delivery{rule: rule}
			recipientOrder = append(recipientOrder, userID)
		}
	}
	if len(recipientOrder) == 0 {
		return
	}

	category := d.Config.CategoryFor(event.EntityType)
	actorName := d.Repo.UserDisplayName(ctx, event.ActorID)
	if actorName == "" {
		actorName = "System"
	}
	title := render.Title(desc, event)
	link := desc.Link(snap.ID)
	now := d.now().UTC().Format(time.RFC3339)

	var wg sync.WaitGroup
	delivered := 0
	var deliveredMu sync.Mutex
	for _, userID := range recipientOrder {
		muted, err := d.Repo.CategoryMuted(ctx, userID, category)
		if err != nil {
			d.Log.Error("preference lookup failed", "user_id", userID, "error", err)
		} else if muted {
			continue
		}
		del := byRecipient[userID]
		body := render.Body(del.rule.MessageTemplate, desc, event, snap, actorName)
		n := domain.Notification{
			ID:          uuid.NewString(),
			RecipientID: userID,
			Title:       title,
			Message:     body,
			Category:    category,
			CreatedAt:   now,
		}
		if link != "" {
			n.DeepLink = &link
		}
		wg.Add(1)
		go func(n domain.Notification) {
			defer wg.Done()
			if err := d.Repo.InsertNotification(ctx, n); err != nil {
				d.Log.Error("notification insert failed", "recipient_id", n.RecipientID, "error", err)
				return
			}
			deliveredMu.Lock()
			delivered++
			deliveredMu.Unlock()
		}(n)
	}
	wg.Wait()

	if delivered == 0 {
		return
	}
	if err := d.Events.AppendDB(ctx, "notification.dispatched", event.EntityType, event.EntityID, event.ActorID, events.EventPayload{
		"write_id":   event.WriteID,
		"old_status": event.OldStatus,
		"new_status": event.NewStatus,
		"recipients": delivered,
	}); err != nil {
		d.Log.Error("dispatch audit failed", "entity_id", event.EntityID, "error", err)
	}
}

// resolve turns one rule's recipient rows into concrete user ids. Missing
// attributes and unknown users contribute nothing.
func (d *Dispatcher) resolve(ctx context.Context, rule domain.NotificationRule, snap watch.Snapshot) map[string]struct{} {
	out := map[string]struct{}{}
	for _, rec := range rule.Recipients {
		switch rec.Mode {
		case domain.RecipientUser:
			if rec.UserID != nil && *rec.UserID != "" {
				out[*rec.UserID] = struct{}{}
			}
		case domain.RecipientCreator:
			if snap.OwnerID == "" {
				continue
			}
			// A nominal user narrows the row to fire only when that user
			// is the creator.
			if rec.UserID != nil && *rec.UserID != "" && *rec.UserID != snap.OwnerID {
				continue
			}
			out[snap.OwnerID] = struct{}{}
		case domain.RecipientAssignee:
			if snap.AssigneeID == "" {
				continue
			}
			if rec.UserID != nil && *rec.UserID != "" && *rec.UserID != snap.AssigneeID {
				continue
			}
			out[snap.AssigneeID] = struct{}{}
		case domain.RecipientRole:
			if rec.RoleID == nil || *rec.RoleID == "" {
				continue
			}
			ids, err := d.Repo.ActiveUserIDsWithRole(ctx, *rec.RoleID)
			if err != nil {
				d.Log.Error("role holder lookup failed", "role_id", *rec.RoleID, "error", err)
				continue
			}
			for _, id := range ids {
				out[id] = struct{}{}
			}
		default:
			d.Log.Warn("recipient row with unknown mode", "rule_id", rule.ID, "mode", rec.Mode)
		}
	}
	return out
}

// markSeen records a transition key, evicting the oldest entries once the
// set reaches its bound. Returns false when the key was already present.
func (d *Dispatcher) markSeen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[string]struct{}{}
	}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)
	for len(d.order) > seenLimit {
		delete(d.seen, d.order[0])
		d.order = d.order[1:]
	}
	return true
}
