package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"reqdesk/config"
	"reqdesk/core/bootstrap"
	"reqdesk/core/store"
	"reqdesk/core/utils"
)

type testEnv struct {
	cfg    *config.AppConfig
	srv    *Server
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.AppConfig{
		DBPath:  filepath.Join(dir, "api.db"),
		Pepper:  "test-pepper",
		CSRFKey: "test-csrf-key",
		AppEnv:  "dev",
	}
	logger := utils.NewLogger()
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		t.Fatalf("db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.ApplyMigrations(context.Background(), db, cfg, logger); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if err := bootstrap.EnsureDefaultAdmin(context.Background(), db, cfg, logger); err != nil {
		t.Fatalf("seed: %v", err)
	}
	srv := NewServer(cfg, db, logger)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return &testEnv{cfg: cfg, srv: srv, ts: ts, client: ts.Client()}
}

type loginResponse struct {
	CSRFToken              string `json:"csrf_token"`
	PasswordChangeRequired bool   `json:"password_change_required"`
	User                   struct {
		Handle string   `json:"handle"`
		Role   string   `json:"role"`
		Menu   []string `json:"menu"`
	} `json:"user"`
}

type authedClient struct {
	env     *testEnv
	cookies []*http.Cookie
	csrf    string
}

func (e *testEnv) login(t *testing.T, handle, password string) (*authedClient, *http.Response) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"handle": handle, "password": password})
	resp, err := e.client.Post(e.ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp
	}
	defer resp.Body.Close()
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	return &authedClient{env: e, cookies: resp.Cookies(), csrf: lr.CSRFToken}, resp
}

func (c *authedClient) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.env.ts.URL+path, &buf)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	if method != http.MethodGet && method != http.MethodHead {
		req.Header.Set("X-CSRF-Token", c.csrf)
	}
	resp, err := c.env.client.Do(req)
	if err != nil {
		t.Fatalf("do %s %s: %v", method, path, err)
	}
	return resp
}

func TestLoginFlowAndForcedPasswordChange(t *testing.T) {
	env := newTestEnv(t)

	// Seeded admin logs in with the bootstrap password and is forced to
	// change it before touching anything else.
	body, _ := json.Marshal(map[string]string{"handle": "admin", "password": "admin"})
	resp, err := env.client.Post(env.ts.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var lr loginResponse
	_ = json.NewDecoder(resp.Body).Decode(&lr)
	resp.Body.Close()
	if !lr.PasswordChangeRequired {
		t.Fatalf("seeded admin not forced to change password")
	}
	client := &authedClient{env: env, cookies: resp.Cookies(), csrf: lr.CSRFToken}

	got := client.do(t, http.MethodGet, "/api/notifications/", nil)
	if got.StatusCode != http.StatusForbidden {
		t.Fatalf("pre-change access status = %d, want 403", got.StatusCode)
	}
	got.Body.Close()

	got = client.do(t, http.MethodPost, "/api/auth/change-password", map[string]string{
		"new_password": "Adm1n!Rotated",
	})
	if got.StatusCode != http.StatusOK {
		t.Fatalf("change password status = %d", got.StatusCode)
	}
	got.Body.Close()

	client, resp2 := env.login(t, "admin", "Adm1n!Rotated")
	if client == nil {
		t.Fatalf("relogin status = %d", resp2.StatusCode)
	}
	got = client.do(t, http.MethodGet, "/api/notifications/", nil)
	if got.StatusCode != http.StatusOK {
		t.Fatalf("post-change access status = %d", got.StatusCode)
	}
	got.Body.Close()
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	env := newTestEnv(t)
	resp, err := env.client.Get(env.ts.URL + "/api/requests/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestCSRFRequiredOnMutations(t *testing.T) {
	env := newTestEnv(t)
	client, resp := env.login(t, "admin", "admin")
	if client == nil {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	req, _ := http.NewRequest(http.MethodPost, env.ts.URL+"/api/auth/change-password", bytes.NewReader([]byte(`{"new_password":"Adm1n!Rotated"}`)))
	for _, ck := range client.cookies {
		req.AddCookie(ck)
	}
	// no X-CSRF-Token header
	got, err := env.client.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer got.Body.Close()
	if got.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", got.StatusCode)
	}
}

func TestWrongPasswordReportsAttemptsRemaining(t *testing.T) {
	env := newTestEnv(t)
	_, resp := env.login(t, "admin", "not-the-password1A")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	defer resp.Body.Close()
	var body struct {
		AttemptsRemaining *int `json:"attempts_remaining"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.AttemptsRemaining == nil || *body.AttemptsRemaining != 4 {
		t.Fatalf("attempts_remaining = %v, want 4", body.AttemptsRemaining)
	}
}

func TestRoleScopedRouting(t *testing.T) {
	env := newTestEnv(t)
	admin, resp := env.login(t, "admin", "admin")
	if admin == nil {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	// Clear the forced change first.
	got := admin.do(t, http.MethodPost, "/api/auth/change-password", map[string]string{"new_password": "Adm1n!Rotated"})
	if got.StatusCode != http.StatusOK {
		t.Fatalf("change password status = %d", got.StatusCode)
	}
	got.Body.Close()
	admin, resp = env.login(t, "admin", "Adm1n!Rotated")
	if admin == nil {
		t.Fatalf("relogin status = %d", resp.StatusCode)
	}

	// Create an organization and an organization account.
	got = admin.do(t, http.MethodPost, "/api/organizations/", map[string]string{"name": "Acme"})
	if got.StatusCode != http.StatusCreated {
		t.Fatalf("create org status = %d", got.StatusCode)
	}
	var orgResp struct {
		Organization struct {
			ID int64 `json:"id"`
		} `json:"organization"`
	}
	_ = json.NewDecoder(got.Body).Decode(&orgResp)
	got.Body.Close()

	got = admin.do(t, http.MethodPost, "/api/accounts/", map[string]any{
		"handle": "acme-user",
		"role":   "organization",
		"org_id": orgResp.Organization.ID,
	})
	if got.StatusCode != http.StatusCreated {
		t.Fatalf("create account status = %d", got.StatusCode)
	}
	var accResp struct {
		TempPassword string `json:"temp_password"`
	}
	_ = json.NewDecoder(got.Body).Decode(&accResp)
	got.Body.Close()

	orgClient, resp := env.login(t, "acme-user", accResp.TempPassword)
	if orgClient == nil {
		t.Fatalf("org login status = %d", resp.StatusCode)
	}
	got = orgClient.do(t, http.MethodPost, "/api/auth/change-password", map[string]string{"new_password": "Acme!User1Pass"})
	if got.StatusCode != http.StatusOK {
		t.Fatalf("org change password status = %d", got.StatusCode)
	}
	got.Body.Close()
	orgClient, resp = env.login(t, "acme-user", "Acme!User1Pass")
	if orgClient == nil {
		t.Fatalf("org relogin status = %d", resp.StatusCode)
	}

	// Organization accounts can file requests but never see admin surfaces.
	got = orgClient.do(t, http.MethodPost, "/api/requests/", map[string]string{"title": "Contract copy"})
	if got.StatusCode != http.StatusCreated {
		t.Fatalf("submit request status = %d", got.StatusCode)
	}
	got.Body.Close()
	got = orgClient.do(t, http.MethodGet, "/api/accounts/", nil)
	if got.StatusCode != http.StatusForbidden {
		t.Fatalf("org account reached /api/accounts: %d", got.StatusCode)
	}
	got.Body.Close()
	got = orgClient.do(t, http.MethodGet, "/api/logs", nil)
	if got.StatusCode != http.StatusForbidden {
		t.Fatalf("org account reached /api/logs: %d", got.StatusCode)
	}
	got.Body.Close()

	// Staff cannot file requests on behalf of organizations.
	got = admin.do(t, http.MethodPost, "/api/requests/", map[string]string{"title": "Not allowed"})
	if got.StatusCode != http.StatusForbidden {
		t.Fatalf("admin filed an organization request: %d", got.StatusCode)
	}
	got.Body.Close()
}
