package server

import (
	"alertline/internal/domain"
	"alertline/internal/registry"
)

// Request payloads

type RecipientRequest struct {
	Mode   string  `json:"mode" enum:"user,creator,assignee,role"`
	UserID *string `json:"user_id,omitempty"`
	RoleID *string `json:"role_id,omitempty"`
}

type CreateRuleRequest struct {
	EntityType      string             `json:"entity_type"`
	TriggerStatus   string             `json:"trigger_status"`
	Name            string             `json:"name"`
	MessageTemplate *string            `json:"message_template,omitempty"`
	Recipients      []RecipientRequest `json:"recipients"`
}

type UpdateRuleRequest struct {
	Name            *string             `json:"name,omitempty"`
	TriggerStatus   *string             `json:"trigger_status,omitempty"`
	MessageTemplate *string             `json:"message_template,omitempty"`
	IsActive        *bool               `json:"is_active,omitempty"`
	Recipients      *[]RecipientRequest `json:"recipients,omitempty"`
}

type CreateUserRequest struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

type CreateOrderRequest struct {
	Number     string  `json:"number"`
	AssignedTo *string `json:"assigned_to,omitempty"`
}

type CreateTicketRequest struct {
	Number  string  `json:"number"`
	Subject string  `json:"subject,omitempty"`
	Handler *string `json:"handler,omitempty"`
}

type CreateVacationRequestRequest struct {
	EmployeeID string  `json:"employee_id"`
	Approver   *string `json:"approver,omitempty"`
	StartDate  string  `json:"start_date" format:"date"`
	EndDate    string  `json:"end_date" format:"date"`
}

type CreateQuotationRequest struct {
	Number string `json:"number"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type MarkAllReadRequest struct {
	IDs []string `json:"ids,omitempty"`
}

type PreferencesRequest struct {
	MutedCategories []string `json:"muted_categories"`
}

// Response payloads

type RecipientResponse struct {
	ID     string  `json:"id"`
	Mode   string  `json:"mode" enum:"user,creator,assignee,role"`
	UserID *string `json:"user_id,omitempty"`
	RoleID *string `json:"role_id,omitempty"`
}

type RuleResponse struct {
	ID              string              `json:"id"`
	EntityType      string              `json:"entity_type"`
	StatusField     string              `json:"status_field"`
	TriggerStatus   string              `json:"trigger_status"`
	Name            string              `json:"name"`
	MessageTemplate *string             `json:"message_template,omitempty"`
	IsActive        bool                `json:"is_active"`
	Recipients      []RecipientResponse `json:"recipients,omitempty"`
	CreatedBy       string              `json:"created_by"`
	CreatedAt       string              `json:"created_at" format:"date-time"`
	UpdatedAt       string              `json:"updated_at" format:"date-time"`
}

type NotificationResponse struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Category  string  `json:"category"`
	IsRead    bool    `json:"is_read"`
	ReadAt    *string `json:"read_at,omitempty" format:"date-time"`
	DeepLink  *string `json:"deep_link,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type UserResponse struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	IsActive    bool     `json:"is_active"`
	Roles       []string `json:"roles,omitempty"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
}

type EntityTypeResponse struct {
	Type        string           `json:"type"`
	Label       string           `json:"label"`
	StatusField string           `json:"status_field"`
	Category    string           `json:"category"`
	Choices     []registry.Choice `json:"choices"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

func ruleResponse(r domain.NotificationRule) RuleResponse {
	out := RuleResponse{
		ID:              r.ID,
		EntityType:      r.EntityType,
		StatusField:     r.StatusField,
		TriggerStatus:   r.TriggerStatus,
		Name:            r.Name,
		MessageTemplate: r.MessageTemplate,
		IsActive:        r.IsActive,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	for _, rec := range r.Recipients {
		out.Recipients = append(out.Recipients, RecipientResponse{
			ID:     rec.ID,
			Mode:   rec.Mode,
			UserID: rec.UserID,
			RoleID: rec.RoleID,
		})
	}
	return out
}

func mapRules(in []domain.NotificationRule) []RuleResponse {
	out := make([]RuleResponse, 0, len(in))
	for _, r := range in {
		out = append(out, ruleResponse(r))
	}
	return out
}

func notificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Message:   n.Message,
		Category:  n.Category,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		DeepLink:  n.DeepLink,
		CreatedAt: n.CreatedAt,
	}
}

func mapNotifications(in []domain.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(in))
	for _, n := range in {
		out = append(out, notificationResponse(n))
	}
	return out
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		IsActive:    u.IsActive,
		Roles:       u.Roles,
		CreatedAt:   u.CreatedAt,
	}
}

func mapEvents(in []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(in))
	for _, e := range in {
		out = append(out, EventResponse{
			ID:         e.ID,
			TS:         e.TS,
			Type:       e.Type,
			EntityKind: e.EntityKind,
			EntityID:   e.EntityID,
			ActorID:    e.ActorID,
			Payload:    e.Payload,
		})
	}
	return out
}
