package domain

type User struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	IsActive    bool     `json:"is_active"`
	Roles       []string `json:"roles,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
}

type NotificationRule struct {
	ID              string          `json:"id"`
	EntityType      string          `json:"entity_type"`
	StatusField     string          `json:"status_field"`
	TriggerStatus   string          `json:"trigger_status"`
	Name            string          `json:"name"`
	MessageTemplate *string         `json:"message_template,omitempty"`
	IsActive        bool            `json:"is_active"`
	Recipients      []RuleRecipient `json:"recipients,omitempty"`
	CreatedBy       string          `json:"created_by"`
	CreatedAt       string          `json:"created_at" format:"date-time"`
	UpdatedAt       string          `json:"updated_at" format:"date-time"`
}

// Recipient resolution modes.
const (
	RecipientUser     = "user"
	RecipientCreator  = "creator"
	RecipientAssignee = "assignee"
	RecipientRole     = "role"
)

type RuleRecipient struct {
	ID     string  `json:"id"`
	RuleID string  `json:"rule_id"`
	Mode   string  `json:"mode" enum:"user,creator,assignee,role"`
	UserID *string `json:"user_id,omitempty"`
	RoleID *string `json:"role_id,omitempty"`
}

type Notification struct {
	ID          string  `json:"id"`
	RecipientID string  `json:"recipient_id"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	Category    string  `json:"category"`
	IsRead      bool    `json:"is_read"`
	ReadAt      *string `json:"read_at,omitempty" format:"date-time"`
	DeepLink    *string `json:"deep_link,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// TransitionEvent is the ephemeral fact that one entity's status field changed.
// It is produced after a write commits, consumed synchronously by the dispatch
// pipeline, and never persisted.
type TransitionEvent struct {
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	StatusField string `json:"status_field"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
	ActorID     string `json:"actor_id"`
	WriteID     string `json:"write_id"`
	OccurredAt  string `json:"occurred_at" format:"date-time"`
}

// Key returns the idempotency key for the event's logical transition.
func (e TransitionEvent) Key() string {
	return e.EntityType + "|" + e.EntityID + "|" + e.NewStatus + "|" + e.WriteID
}

type Preferences struct {
	UserID          string   `json:"user_id"`
	MutedCategories []string `json:"muted_categories"`
	UpdatedAt       string   `json:"updated_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
