// Package registry enumerates the entity types whose status fields the
// dispatch engine watches. The table is fixed at process start; rule
// configuration and recipient resolution read it, never mutate it.
package registry

// Entity is the minimal capability a watched entity exposes to the engine.
type Entity interface {
	EntityType() string
	EntityID() string
	StatusValue() string
}

// HasOwner is implemented by entities with a creator/owner attribute.
type HasOwner interface {
	OwnerID() string
}

// HasAssignee is implemented by entities with an assignee-like attribute.
type HasAssignee interface {
	AssigneeID() string
}

// HasDisplayRef is implemented by entities with a human-readable reference
// (order number, ticket number) preferable over the raw id.
type HasDisplayRef interface {
	DisplayRef() string
}

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Descriptor struct {
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	StatusField string   `json:"status_field"`
	Category    string   `json:"category"`
	Choices     []Choice `json:"choices"`
	linkPrefix  string
}

// Link builds the deep link for one entity instance.
func (d Descriptor) Link(entityID string) string {
	if d.linkPrefix == "" {
		return ""
	}
	return d.linkPrefix + entityID
}

// StatusLabel resolves a status value to its display label. Unknown values
// are returned verbatim so a stale rule or legacy row still renders.
func (d Descriptor) StatusLabel(value string) string {
	for _, c := range d.Choices {
		if c.Value == value {
			return c.Label
		}
	}
	return value
}

type Registry struct {
	order []string
	types map[string]Descriptor
}

// New returns the registry of watched entity types.
func New() *Registry {
	r := &Registry{types: map[string]Descriptor{}}
	for _, d := range []Descriptor{
		{
			Type: "order", Label: "Order", StatusField: "status", Category: "sales",
			linkPrefix: "/orders/",
			Choices: []Choice{
				{Value: "open", Label: "Open"},
				{Value: "confirmed", Label: "Confirmed"},
				{Value: "shipped", Label: "Shipped"},
				{Value: "invoiced", Label: "Invoiced"},
				{Value: "canceled", Label: "Canceled"},
			},
		},
		{
			Type: "ticket", Label: "Ticket", StatusField: "status", Category: "support",
			linkPrefix: "/tickets/",
			Choices: []Choice{
				{Value: "new", Label: "New"},
				{Value: "in_progress", Label: "In Progress"},
				{Value: "resolved", Label: "Resolved"},
				{Value: "closed", Label: "Closed"},
			},
		},
		{
			Type: "vacation_request", Label: "Vacation Request", StatusField: "status", Category: "hr",
			linkPrefix: "/vacation-requests/",
			Choices: []Choice{
				{Value: "submitted", Label: "Submitted"},
				{Value: "approved", Label: "Approved"},
				{Value: "rejected", Label: "Rejected"},
				{Value: "canceled", Label: "Canceled"},
			},
		},
		{
			Type: "quotation", Label: "Quotation", StatusField: "status", Category: "sales",
			linkPrefix: "/quotations/",
			Choices: []Choice{
				{Value: "draft", Label: "Draft"},
				{Value: "sent", Label: "Sent"},
				{Value: "accepted", Label: "Accepted"},
				{Value: "declined", Label: "Declined"},
			},
		},
	} {
		r.order = append(r.order, d.Type)
		r.types[d.Type] = d
	}
	return r
}

// Types lists descriptors in registration order.
func (r *Registry) Types() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, r.types[t])
	}
	return out
}

func (r *Registry) Lookup(entityType string) (Descriptor, bool) {
	d, ok := r.types[entityType]
	return d, ok
}

// StatusChoices returns the valid status values for an entity type.
// Unknown types yield an empty result.
func (r *Registry) StatusChoices(entityType string) []Choice {
	d, ok := r.types[entityType]
	if !ok {
		return nil
	}
	return d.Choices
}

// ValidStatus reports whether value is a declared status of entityType.
func (r *Registry) ValidStatus(entityType, value string) bool {
	for _, c := range r.StatusChoices(entityType) {
		if c.Value == value {
			return true
		}
	}
	return false
}
