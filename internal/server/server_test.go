package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"alertline/internal/config"
	"alertline/internal/db"
	"alertline/internal/engine"
	"alertline/internal/logging"
	"alertline/internal/migrate"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	Engine *engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default("alertline")
	cfg.Auth.AllowUserHeader = true
	e := engine.New(conn, cfg, logging.Nop())
	if _, err := e.CreateUser(context.Background(), "root", "Root", []string{"admin"}, "system"); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth: AuthConfig{
			JWTSecret:             testJWTSecret,
			AllowLegacyUserHeader: true,
			Logger:                logging.Nop(),
		},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asUser(id string) map[string]string {
	return map[string]string{"X-User-Id": id}
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", res.StatusCode)
	}
}

func TestMissingCredentialsRejected(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/rules", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Body struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Body.Code != "unauthorized" {
		t.Fatalf("code %q", envelope.Body.Code)
	}
}

func TestJWTAuth(t *testing.T) {
	srv := newTestServer(t)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "root",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/rules", nil, map[string]string{
		"Authorization": "Bearer " + signed,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "root"}).SignedString([]byte("wrong"))
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/rules", nil, map[string]string{
		"Authorization": "Bearer " + forged,
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("forged token status %d", res.StatusCode)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	srv := newTestServer(t)
	_, raw, err := srv.Engine.MintAPIKey(context.Background(), "root", "test")
	if err != nil {
		t.Fatalf("mint key: %v", err)
	}
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/entity-types", nil, map[string]string{
		"X-Api-Key": raw,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	res, _ = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/entity-types", nil, map[string]string{
		"X-Api-Key": "not-a-key",
	})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key status %d", res.StatusCode)
	}
}

func TestRulesCRUD(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", map[string]any{
		"id":    "sales1",
		"roles": []string{"sales"},
	}, asUser("root"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rules", map[string]any{
		"entity_type":    "order",
		"trigger_status": "confirmed",
		"name":           "confirmations",
		"recipients":     []map[string]any{{"mode": "role", "role_id": "sales"}},
	}, asUser("root"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rule status %d: %s", res.StatusCode, string(data))
	}
	var rule RuleResponse
	if err := json.Unmarshal(data, &rule); err != nil {
		t.Fatalf("unmarshal rule: %v", err)
	}
	if rule.ID == "" || rule.StatusField != "status" || !rule.IsActive {
		t.Fatalf("rule %+v", rule)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/rules?entity_type=order", nil, asUser("root"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", res.StatusCode)
	}
	var rules []RuleResponse
	if err := json.Unmarshal(data, &rules); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("list size %d", len(rules))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/rules/"+rule.ID, map[string]any{
		"is_active": false,
	}, asUser("root"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("patch status %d: %s", res.StatusCode, string(data))
	}
	var patched RuleResponse
	_ = json.Unmarshal(data, &patched)
	if patched.IsActive {
		t.Fatal("rule still active")
	}

	// non-admin cannot administer rules
	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/rules/"+rule.ID, nil, asUser("sales1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("non-admin delete status %d: %s", res.StatusCode, string(data))
	}

	res, _ = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/rules/"+rule.ID, nil, asUser("root"))
	if res.StatusCode >= 300 {
		t.Fatalf("delete status %d", res.StatusCode)
	}
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/rules/"+rule.ID, nil, asUser("root"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status %d", res.StatusCode)
	}
}

func TestNotificationFlow(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/users", map[string]any{
		"id":    "sales1",
		"roles": []string{"sales"},
	}, asUser("root"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rules", map[string]any{
		"entity_type":    "order",
		"trigger_status": "confirmed",
		"name":           "confirmations",
		"recipients":     []map[string]any{{"mode": "role", "role_id": "sales"}},
	}, asUser("root"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rule status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/orders", map[string]any{
		"number": "SO-100",
	}, asUser("root"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create order status %d: %s", res.StatusCode, string(data))
	}
	var order OrderResponse
	if err := json.Unmarshal(data, &order); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/orders/"+order.ID+"/status", map[string]any{
		"status": "confirmed",
	}, asUser("root"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set status %d: %s", res.StatusCode, string(data))
	}
	srv.Engine.Dispatcher.Wait()

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/notifications", nil, asUser("sales1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list notifications status %d", res.StatusCode)
	}
	var items []NotificationResponse
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("unmarshal notifications: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("inbox size %d: %s", len(items), string(data))
	}
	notifID := items[0].ID

	// the inbox is private
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/notifications", nil, asUser("root"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("root inbox status %d", res.StatusCode)
	}
	var rootItems []NotificationResponse
	_ = json.Unmarshal(data, &rootItems)
	if len(rootItems) != 0 {
		t.Fatalf("root sees %d foreign notifications", len(rootItems))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/notifications/unread-count", nil, asUser("sales1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unread-count status %d", res.StatusCode)
	}
	var count map[string]int
	_ = json.Unmarshal(data, &count)
	if count["unread"] != 1 {
		t.Fatalf("unread %d", count["unread"])
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/notifications/"+notifID+"/read", nil, asUser("sales1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark read status %d: %s", res.StatusCode, string(data))
	}
	var marked NotificationResponse
	_ = json.Unmarshal(data, &marked)
	if !marked.IsRead || marked.ReadAt == nil {
		t.Fatalf("marked %+v", marked)
	}

	// another user cannot mark it
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/notifications/"+notifID+"/unread", nil, asUser("root"))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("cross-user unread status %d", res.StatusCode)
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/notifications/read", nil, asUser("sales1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("clear read status %d", res.StatusCode)
	}
	var deleted map[string]int64
	_ = json.Unmarshal(data, &deleted)
	if deleted["deleted"] != 1 {
		t.Fatalf("deleted %d", deleted["deleted"])
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/me/preferences", nil, asUser("root"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get prefs status %d: %s", res.StatusCode, string(data))
	}
	var prefs PreferencesRequest
	_ = json.Unmarshal(data, &prefs)
	if len(prefs.MutedCategories) != 0 {
		t.Fatalf("fresh prefs %+v", prefs)
	}

	res, data = doJSON(t, client, http.MethodPut, srv.URL+"/v0/me/preferences", map[string]any{
		"muted_categories": []string{"sales", "hr"},
	}, asUser("root"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put prefs status %d: %s", res.StatusCode, string(data))
	}
	_ = json.Unmarshal(data, &prefs)
	if len(prefs.MutedCategories) != 2 {
		t.Fatalf("prefs after put %+v", prefs)
	}
}

func TestEntityTypesListing(t *testing.T) {
	srv := newTestServer(t)
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/entity-types", nil, asUser("root"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var types []EntityTypeResponse
	if err := json.Unmarshal(data, &types); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(types) != 4 {
		t.Fatalf("types %d", len(types))
	}
	if types[0].Type != "order" || len(types[0].Choices) == 0 {
		t.Fatalf("first descriptor %+v", types[0])
	}
}
