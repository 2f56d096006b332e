package alertlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Alertline HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Recipient is one recipient row of a rule.
type Recipient struct {
	Mode   string  `json:"mode"`
	UserID *string `json:"user_id,omitempty"`
	RoleID *string `json:"role_id,omitempty"`
}

// Rule represents a notification rule.
type Rule struct {
	ID              string      `json:"id"`
	EntityType      string      `json:"entity_type"`
	StatusField     string      `json:"status_field"`
	TriggerStatus   string      `json:"trigger_status"`
	Name            string      `json:"name"`
	MessageTemplate *string     `json:"message_template,omitempty"`
	IsActive        bool        `json:"is_active"`
	Recipients      []Recipient `json:"recipients,omitempty"`
	CreatedBy       string      `json:"created_by"`
	CreatedAt       string      `json:"created_at"`
	UpdatedAt       string      `json:"updated_at"`
}

// Notification represents an inbox entry.
type Notification struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Message   string  `json:"message"`
	Category  string  `json:"category"`
	IsRead    bool    `json:"is_read"`
	ReadAt    *string `json:"read_at,omitempty"`
	DeepLink  *string `json:"deep_link,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateRule creates a notification rule.
func (c *Client) CreateRule(ctx context.Context, entityType, triggerStatus, name string, recipients []Recipient) (Rule, error) {
	body := map[string]any{
		"entity_type":    entityType,
		"trigger_status": triggerStatus,
		"name":           name,
		"recipients":     recipients,
	}
	var resp Rule
	err := c.do(ctx, http.MethodPost, "v0/rules", body, &resp)
	return resp, err
}

// Rules lists rules, optionally filtered by entity type.
func (c *Client) Rules(ctx context.Context, entityType string) ([]Rule, error) {
	endpoint := "v0/rules"
	if entityType != "" {
		endpoint += "?entity_type=" + url.QueryEscape(entityType)
	}
	var resp []Rule
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// DeleteRule deletes a rule.
func (c *Client) DeleteRule(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "v0/rules/"+url.PathEscape(id), nil, nil)
}

// Notifications lists the authenticated user's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	endpoint := "v0/notifications"
	if unreadOnly {
		endpoint += "?read=false"
	}
	var resp []Notification
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UnreadCount returns the authenticated user's unread notification count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp map[string]int
	if err := c.do(ctx, http.MethodGet, "v0/notifications/unread-count", nil, &resp); err != nil {
		return 0, err
	}
	return resp["unread"], nil
}

// MarkRead marks one notification read.
func (c *Client) MarkRead(ctx context.Context, id string) (Notification, error) {
	var resp Notification
	endpoint := fmt.Sprintf("v0/notifications/%s/read", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// MarkAllRead marks the authenticated user's notifications read. An empty id
// list marks everything.
func (c *Client) MarkAllRead(ctx context.Context, ids []string) (int64, error) {
	body := map[string]any{"ids": ids}
	var resp map[string]int64
	if err := c.do(ctx, http.MethodPost, "v0/notifications/read-all", body, &resp); err != nil {
		return 0, err
	}
	return resp["updated"], nil
}

// SetStatus moves an entity to a new status, triggering any matching rules.
func (c *Client) SetStatus(ctx context.Context, entityPath, id, status string) error {
	body := map[string]any{"status": status}
	endpoint := fmt.Sprintf("v0/%s/%s/status", strings.Trim(entityPath, "/"), url.PathEscape(id))
	return c.do(ctx, http.MethodPatch, endpoint, body, nil)
}

// Events returns recent audit events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v0/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
