// Package watch captures status values around entity writes and turns a
// committed change into a transition event. One Span covers exactly one
// write; nothing here is shared across requests.
package watch

import (
	"time"

	"github.com/google/uuid"

	"alertline/internal/domain"
	"alertline/internal/registry"
)

// Snapshot is the view of an entity taken at commit time. Dispatch works
// against this copy, so a later write to the same entity cannot change what
// gets resolved or rendered.
type Snapshot struct {
	Type       string
	ID         string
	DisplayRef string
	OwnerID    string
	AssigneeID string
}

// Snap builds a Snapshot from whatever capabilities the entity exposes.
func Snap(e registry.Entity) Snapshot {
	s := Snapshot{
		Type:       e.EntityType(),
		ID:         e.EntityID(),
		DisplayRef: e.EntityID(),
	}
	if v, ok := e.(registry.HasDisplayRef); ok {
		if ref := v.DisplayRef(); ref != "" {
			s.DisplayRef = ref
		}
	}
	if v, ok := e.(registry.HasOwner); ok {
		s.OwnerID = v.OwnerID()
	}
	if v, ok := e.(registry.HasAssignee); ok {
		s.AssigneeID = v.AssigneeID()
	}
	return s
}

// Span tracks one write against one entity's status field.
type Span struct {
	writeID     string
	entityType  string
	entityID    string
	statusField string
	prior       string
	captured    bool
}

// Begin opens a span for a write against the entity identified by id. The
// prior status is not known yet; call CapturePrior once the pre-write row
// has been read. A span that never captures treats the write as a creation.
func Begin(d registry.Descriptor, entityID string) *Span {
	return &Span{
		writeID:     uuid.NewString(),
		entityType:  d.Type,
		entityID:    entityID,
		statusField: d.StatusField,
	}
}

// CapturePrior records the status value read before the write.
func (s *Span) CapturePrior(status string) {
	s.prior = status
	s.captured = true
}

// WriteID identifies the logical write this span covers.
func (s *Span) WriteID() string { return s.writeID }

// Commit compares the captured prior status with the committed entity and
// returns the transition event, if any. No capture or an unchanged value
// yields no event.
func (s *Span) Commit(after registry.Entity, actorID string, now time.Time) (domain.TransitionEvent, bool) {
	if !s.captured {
		return domain.TransitionEvent{}, false
	}
	newStatus := after.StatusValue()
	if s.prior == newStatus {
		return domain.TransitionEvent{}, false
	}
	return domain.TransitionEvent{
		EntityType:  s.entityType,
		EntityID:    s.entityID,
		StatusField: s.statusField,
		OldStatus:   s.prior,
		NewStatus:   newStatus,
		ActorID:     actorID,
		WriteID:     s.writeID,
		OccurredAt:  now.UTC().Format(time.RFC3339),
	}, true
}
