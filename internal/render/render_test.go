package render_test

import (
	"strings"
	"testing"

	"alertline/internal/domain"
	"alertline/internal/registry"
	"alertline/internal/render"
	"alertline/internal/watch"
)

func fixtures(t *testing.T) (registry.Descriptor, domain.TransitionEvent, watch.Snapshot) {
	t.Helper()
	d, ok := registry.New().Lookup("order")
	if !ok {
		t.Fatal("order descriptor missing")
	}
	evt := domain.TransitionEvent{
		EntityType:  "order",
		EntityID:    "o-1",
		StatusField: "status",
		OldStatus:   "open",
		NewStatus:   "confirmed",
		ActorID:     "alice",
	}
	snap := watch.Snapshot{Type: "order", ID: "o-1", DisplayRef: "SO-100", OwnerID: "alice"}
	return d, evt, snap
}

func TestTitleUsesStatusLabel(t *testing.T) {
	d, evt, _ := fixtures(t)
	got := render.Title(d, evt)
	if got != "Order: status changed to 'Confirmed'" {
		t.Fatalf("title %q", got)
	}
}

func TestBodyFallbackWithoutTemplate(t *testing.T) {
	d, evt, snap := fixtures(t)
	want := "Order 'SO-100' changed from 'Open' to 'Confirmed'."
	if got := render.Body(nil, d, evt, snap, "Alice"); got != want {
		t.Fatalf("nil template: %q", got)
	}
	empty := "   "
	if got := render.Body(&empty, d, evt, snap, "Alice"); got != want {
		t.Fatalf("blank template: %q", got)
	}
}

func TestBodySubstitutesPlaceholders(t *testing.T) {
	d, evt, snap := fixtures(t)
	tmpl := "{changed_by} moved {object} from {old_status} to {new_status}"
	got := render.Body(&tmpl, d, evt, snap, "Alice")
	if got != "Alice moved SO-100 from Open to Confirmed" {
		t.Fatalf("body %q", got)
	}
}

func TestBodyMalformedTemplateFallsBack(t *testing.T) {
	d, evt, snap := fixtures(t)
	tmpl := "order {object went to {new_status}"
	got := render.Body(&tmpl, d, evt, snap, "Alice")
	if !strings.HasPrefix(got, "Order 'SO-100' changed") {
		t.Fatalf("expected fallback, got %q", got)
	}

	tmpl = "stuck {object"
	got = render.Body(&tmpl, d, evt, snap, "Alice")
	if !strings.HasPrefix(got, "Order 'SO-100' changed") {
		t.Fatalf("expected fallback for unclosed brace, got %q", got)
	}
}

func TestBodyLeavesUnknownPlaceholderVerbatim(t *testing.T) {
	d, evt, snap := fixtures(t)
	tmpl := "see {objct} now {new_status}"
	got := render.Body(&tmpl, d, evt, snap, "Alice")
	if got != "see {objct} now Confirmed" {
		t.Fatalf("body %q", got)
	}
}

func TestBodyUnknownStatusRendersVerbatim(t *testing.T) {
	d, evt, snap := fixtures(t)
	evt.OldStatus = "legacy_state"
	got := render.Body(nil, d, evt, snap, "Alice")
	if !strings.Contains(got, "'legacy_state'") {
		t.Fatalf("body %q", got)
	}
}

func TestValidate(t *testing.T) {
	if err := render.Validate("{object}: {old_status} -> {new_status} by {changed_by}"); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}
	if err := render.Validate("no placeholders at all"); err != nil {
		t.Fatalf("plain template rejected: %v", err)
	}
	if err := render.Validate("{object"); err == nil {
		t.Fatal("unclosed placeholder accepted")
	}
	if err := render.Validate("{shipment}"); err == nil {
		t.Fatal("unknown placeholder accepted")
	}
	if err := render.Validate("order {object went to {new_status}"); err == nil {
		t.Fatal("nested brace accepted")
	}
}
