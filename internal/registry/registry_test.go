package registry_test

import (
	"testing"

	"alertline/internal/registry"
)

func TestTypesAreStable(t *testing.T) {
	r := registry.New()
	types := r.Types()
	if len(types) != 4 {
		t.Fatalf("types %d", len(types))
	}
	want := []string{"order", "ticket", "vacation_request", "quotation"}
	for i, d := range types {
		if d.Type != want[i] {
			t.Fatalf("position %d: %s", i, d.Type)
		}
		if d.StatusField != "status" || d.Label == "" || d.Category == "" || len(d.Choices) == 0 {
			t.Fatalf("descriptor %+v", d)
		}
	}
}

func TestValidStatus(t *testing.T) {
	r := registry.New()
	if !r.ValidStatus("order", "confirmed") {
		t.Fatal("confirmed rejected")
	}
	if r.ValidStatus("order", "resolved") {
		t.Fatal("ticket status accepted for order")
	}
	if r.ValidStatus("invoice", "open") {
		t.Fatal("unknown type accepted")
	}
}

func TestStatusLabelFallsBackVerbatim(t *testing.T) {
	d, ok := registry.New().Lookup("ticket")
	if !ok {
		t.Fatal("ticket missing")
	}
	if got := d.StatusLabel("in_progress"); got != "In Progress" {
		t.Fatalf("label %q", got)
	}
	if got := d.StatusLabel("weird"); got != "weird" {
		t.Fatalf("unknown label %q", got)
	}
}

func TestLink(t *testing.T) {
	d, _ := registry.New().Lookup("vacation_request")
	if got := d.Link("v-1"); got != "/vacation-requests/v-1" {
		t.Fatalf("link %q", got)
	}
}
