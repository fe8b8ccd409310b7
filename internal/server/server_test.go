package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/socialhub/internal/repository"
	"github.com/sakif/socialhub/internal/repository/sqlite"
)

func newTestServer(t *testing.T, store repository.Store) *httptest.Server {
	t.Helper()

	if store == nil {
		db, err := sqlite.New(":memory:")
		require.NoError(t, err)
		store = db
	}
	t.Cleanup(func() { store.Close() })

	s, err := New(Config{
		Port:       0,
		JWTSecret:  "test-secret-at-least-16-chars!!",
		TokenTTL:   time.Hour,
		BcryptCost: 4,
	}, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// client is one browser: it keeps its own cookie jar.
type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

func (c *client) do(method, path, body string) (int, map[string]any) {
	c.t.Helper()

	req, err := http.NewRequest(method, c.base+path, bytes.NewBufferString(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

// signup registers name and returns a client holding its session cookie and
// the new user's id.
func signup(t *testing.T, ts *httptest.Server, name string) (*client, string) {
	t.Helper()
	c := newClient(t, ts)
	status, body := c.do(http.MethodPost, "/api/v1/register",
		`{"name":"`+name+`","email":"`+name+`@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, status, body)
	return c, body["user"].(map[string]any)["id"].(string)
}

func (c *client) user(id string) map[string]any {
	c.t.Helper()
	status, body := c.do(http.MethodGet, "/api/v1/user/"+id, "")
	require.Equal(c.t, http.StatusOK, status, body)
	return body["user"].(map[string]any)
}

func ids(v any) []string {
	out := []string{}
	for _, x := range v.([]any) {
		out = append(out, x.(string))
	}
	return out
}

// =========================================================================
// END-TO-END FLOWS
// =========================================================================

func TestRegisterLoginLogout(t *testing.T) {
	ts := newTestServer(t, nil)
	alice, aliceID := signup(t, ts, "alice")

	status, body := alice.do(http.MethodGet, "/api/v1/me", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, aliceID, body["user"].(map[string]any)["id"])

	status, body = alice.do(http.MethodPost, "/api/v1/logout", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logged out", body["message"])

	status, body = alice.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "please login first", body["message"])

	status, _ = alice.do(http.MethodPost, "/api/v1/login", `{"email":"alice@example.com","password":"secret123"}`)
	require.Equal(t, http.StatusOK, status)

	status, _ = alice.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusOK, status)

	status, _ = alice.do(http.MethodGet, "/api/v1/logout", "")
	assert.Equal(t, http.StatusOK, status, "logout also answers GET")
}

func TestRegister_ExistingEmailCreatesNothing(t *testing.T) {
	ts := newTestServer(t, nil)
	alice, _ := signup(t, ts, "alice")

	other := newClient(t, ts)
	status, body := other.do(http.MethodPost, "/api/v1/register",
		`{"name":"Mallory","email":"alice@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "User already exists", body["message"])

	_, body = alice.do(http.MethodGet, "/api/v1/users", "")
	assert.Len(t, body["users"], 1)
}

func TestFollowTwice_ListsStayMutual(t *testing.T) {
	ts := newTestServer(t, nil)
	a, aID := signup(t, ts, "a")
	_, bID := signup(t, ts, "b")

	status, body := a.do(http.MethodPut, "/api/v1/follow/"+bID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User followed", body["message"])

	assert.Equal(t, []string{bID}, ids(a.user(aID)["following"]))
	assert.Equal(t, []string{aID}, ids(a.user(bID)["followers"]))

	status, body = a.do(http.MethodPut, "/api/v1/follow/"+bID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User Unfollowed", body["message"])

	assert.Empty(t, ids(a.user(aID)["following"]))
	assert.Empty(t, ids(a.user(bID)["followers"]))
}

func TestDeleteProfile_Cascades(t *testing.T) {
	ts := newTestServer(t, nil)
	victim, victimID := signup(t, ts, "victim")
	fan, fanID := signup(t, ts, "fan")
	_, idolID := signup(t, ts, "idol")

	status, body := victim.do(http.MethodPost, "/api/v1/post/upload", `{"caption":"last words"}`)
	require.Equal(t, http.StatusCreated, status)
	postID := body["post"].(map[string]any)["id"].(string)

	_, _ = fan.do(http.MethodPut, "/api/v1/follow/"+victimID, "")
	_, _ = victim.do(http.MethodPut, "/api/v1/follow/"+idolID, "")

	status, body = victim.do(http.MethodDelete, "/api/v1/delete/me", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Profile deleted", body["message"])

	// The cookie was cleared along with the account.
	status, _ = victim.do(http.MethodGet, "/api/v1/me", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	assert.Empty(t, ids(fan.user(fanID)["following"]))
	assert.Empty(t, ids(fan.user(idolID)["followers"]))

	status, _ = fan.do(http.MethodGet, "/api/v1/post/"+postID, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = fan.do(http.MethodGet, "/api/v1/user/"+victimID, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "user not found", body["message"])
}

func TestUpdateProfile_FieldsIndependent(t *testing.T) {
	ts := newTestServer(t, nil)
	a, aID := signup(t, ts, "a")

	status, _ := a.do(http.MethodPut, "/api/v1/update/profile", `{"name":"Ada"}`)
	require.Equal(t, http.StatusOK, status)
	u := a.user(aID)
	assert.Equal(t, "Ada", u["name"])
	assert.Equal(t, "a@example.com", u["email"])

	status, _ = a.do(http.MethodPut, "/api/v1/update/profile", `{"email":"ada@example.com"}`)
	require.Equal(t, http.StatusOK, status)
	u = a.user(aID)
	assert.Equal(t, "Ada", u["name"])
	assert.Equal(t, "ada@example.com", u["email"])
}

func TestUpdatePassword_ThenLogin(t *testing.T) {
	ts := newTestServer(t, nil)
	a, _ := signup(t, ts, "a")

	status, body := a.do(http.MethodPut, "/api/v1/update/password", `{"oldPassword":"secret123","newPassword":"n3w-secret"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password changed successfully", body["message"])

	fresh := newClient(t, ts)
	status, body = fresh.do(http.MethodPost, "/api/v1/login", `{"email":"a@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "incorrect password", body["message"])

	status, _ = fresh.do(http.MethodPost, "/api/v1/login", `{"email":"a@example.com","password":"n3w-secret"}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestListUsers_ExactlyRegistered(t *testing.T) {
	ts := newTestServer(t, nil)
	want := []string{}
	var c *client
	for _, name := range []string{"a", "b", "c", "d"} {
		var id string
		c, id = signup(t, ts, name)
		want = append(want, id)
	}

	status, body := c.do(http.MethodGet, "/api/v1/users", "")
	require.Equal(t, http.StatusOK, status)

	got := []string{}
	for _, u := range body["users"].([]any) {
		got = append(got, u.(map[string]any)["id"].(string))
	}
	assert.ElementsMatch(t, want, got)
}

func TestProtectedRoutes_RequireSession(t *testing.T) {
	ts := newTestServer(t, nil)
	anon := newClient(t, ts)

	routes := []struct{ method, path string }{
		{http.MethodPut, "/api/v1/follow/x"},
		{http.MethodPut, "/api/v1/update/password"},
		{http.MethodPut, "/api/v1/update/profile"},
		{http.MethodDelete, "/api/v1/delete/me"},
		{http.MethodGet, "/api/v1/me"},
		{http.MethodGet, "/api/v1/user/x"},
		{http.MethodGet, "/api/v1/users"},
		{http.MethodPost, "/api/v1/post/upload"},
		{http.MethodGet, "/api/v1/post/x"},
		{http.MethodDelete, "/api/v1/post/x"},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			status, body := anon.do(rt.method, rt.path, "{}")
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, false, body["success"])
		})
	}
}

// =========================================================================
// HEALTH & METRICS
// =========================================================================

type unreachableStore struct {
	repository.Store
}

func (unreachableStore) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	down := newTestServer(t, unreachableStore{Store: db})

	resp, err = http.Get(down.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetrics_ExposeRequestCounts(t *testing.T) {
	ts := newTestServer(t, nil)
	signup(t, ts, "a")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(raw)
	assert.True(t, strings.Contains(text, `http_requests_total{method="POST",path="/api/v1/register",status="201"} 1`), text)
	assert.Contains(t, text, "go_goroutines")
}

func TestPasswordOverBcryptLimit_IsBadRequest(t *testing.T) {
	ts := newTestServer(t, nil)
	long := strings.Repeat("é", 40) // 80 bytes

	c := newClient(t, ts)
	status, body := c.do(http.MethodPost, "/api/v1/register",
		`{"name":"Eve","email":"eve@example.com","password":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "password must be at most 72 bytes", body["message"])

	alice, _ := signup(t, ts, "alice")
	status, body = alice.do(http.MethodPut, "/api/v1/update/password",
		`{"oldPassword":"secret123","newPassword":"`+long+`"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "newPassword must be at most 72 bytes", body["message"])

	status, _ = alice.do(http.MethodPost, "/api/v1/login", `{"email":"alice@example.com","password":"secret123"}`)
	assert.Equal(t, http.StatusOK, status, "old password still works")
}
