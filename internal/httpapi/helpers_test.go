package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"idgate.org/internal/auth"
	"idgate.org/internal/store/memory"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	svc     *auth.Service
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	tokens, err := auth.NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	svc, err := auth.NewService(memory.New(), tokens)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	if err := svc.EnsureBuiltins(context.Background()); err != nil {
		t.Fatalf("ensure builtins: %v", err)
	}

	api := New(svc, ReadyProbe{}, "test", WithRateLimit(1000, 1000))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		svc:     svc,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) patch(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPatch, path, body, headers)
}

func (c *apiClient) delete(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodDelete, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// registerAndLogin creates an account over the API and returns its token.
func (c *apiClient) registerAndLogin(username, password string) (string, *auth.User) {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		c.t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	user := decode[*auth.User](c.t, resp)

	resp = c.post("/v1/auth/login", map[string]any{
		"username": username,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: status %d", username, resp.StatusCode)
	}
	payload := decode[tokenResponse](c.t, resp)
	if payload.Token == "" {
		c.t.Fatal("empty token issued")
	}
	return payload.Token, user
}

// grantManagement seeds the user with a role holding the named builtin
// permissions, going through the service layer directly because the HTTP
// management surface is itself gated.
func (c *apiClient) grantManagement(userID, roleName string, permNames ...string) {
	c.t.Helper()
	ctx := context.Background()
	role, err := c.svc.CreateRole(ctx, roleName, false)
	if err != nil {
		c.t.Fatalf("create role: %v", err)
	}
	if err := c.svc.AssignUsersToRole(ctx, role.ID, []string{userID}); err != nil {
		c.t.Fatalf("assign role: %v", err)
	}
	if len(permNames) == 0 {
		return
	}
	perms, err := c.svc.ListPermissions(ctx, 0, 200)
	if err != nil {
		c.t.Fatalf("list permissions: %v", err)
	}
	var ids []string
	for _, want := range permNames {
		found := false
		for _, p := range perms {
			if p.Name == want {
				ids = append(ids, p.ID)
				found = true
				break
			}
		}
		if !found {
			c.t.Fatalf("permission %s not seeded", want)
		}
	}
	if err := c.svc.GrantPermissionsToRole(ctx, role.ID, ids); err != nil {
		c.t.Fatalf("grant permissions: %v", err)
	}
}

func withBearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}
