package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authsvc "landlease/internal/application/auth"
	sessionsvc "landlease/internal/application/session"
	"landlease/internal/domain"
	"landlease/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type authFixture struct {
	app     *fiber.App
	rdb     *redis.Client
	changes <-chan sessionsvc.IdentityChange
}

func setupAuthHandlers(t *testing.T) *authFixture {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.User{}))

	b := sessionsvc.NewBroadcaster()
	changes, cancel := b.Subscribe(8)
	t.Cleanup(cancel)

	h := &Handlers{
		Service:     &authsvc.Service{DB: db},
		Rdb:         rdb,
		Config:      middleware.SessionConfig{},
		Broadcaster: b,
	}
	app := fiber.New()
	app.Use(middleware.Session(rdb))
	app.Post("/register", h.Register)
	app.Post("/login", h.Login)
	app.Post("/anonymous", h.Anonymous)
	app.Get("/me", h.Me)
	app.Delete("/logout", h.Logout)
	app.Delete("/sessions", h.LogoutAll)
	return &authFixture{app: app, rdb: rdb, changes: changes}
}

func postJSON(t *testing.T, app *fiber.App, path string, v interface{}, cookie string) *http.Response {
	body, _ := json.Marshal(v)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: cookie})
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func cookieOf(resp *http.Response) string {
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookieName {
			return ck.Value
		}
	}
	return ""
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	b, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestRegister_ThenLogin(t *testing.T) {
	f := setupAuthHandlers(t)
	creds := map[string]string{"email": "Seller@Example.com", "password": "secret1"}

	resp := postJSON(t, f.app, "/register", creds, "")
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	out := decode(t, resp)
	data := out["data"].(map[string]interface{})
	assert.Equal(t, "seller@example.com", data["user"].(map[string]interface{})["email"])
	assert.Equal(t, "role", data["session"].(map[string]interface{})["screen"])
	assert.True(t, strings.HasPrefix(cookieOf(resp), "s:"))

	change := <-f.changes
	assert.True(t, change.SignedIn)
	assert.Equal(t, "seller@example.com", change.Email)

	resp = postJSON(t, f.app, "/register", creds, "")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)

	resp = postJSON(t, f.app, "/login", creds, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Login successful", decode(t, resp)["message"])

	keys, err := f.rdb.Keys(context.Background(), "user_sessions:*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestRegister_Rejects(t *testing.T) {
	f := setupAuthHandlers(t)
	cases := []struct {
		body map[string]string
		code int
		msg  string
	}{
		{map[string]string{"email": "a@b.com"}, 400, "Email and password are required"},
		{map[string]string{"email": "a@b.com", "password": "12345"}, 400, "Password should be at least 6 characters"},
		{map[string]string{"email": "not-an-email", "password": "123456"}, 401, "Invalid Email"},
	}
	for _, tc := range cases {
		resp := postJSON(t, f.app, "/register", tc.body, "")
		assert.Equal(t, tc.code, resp.StatusCode, tc.msg)
		out := decode(t, resp)
		assert.Equal(t, tc.msg, out["error"].(map[string]interface{})["message"])
	}
}

func TestLogin_Failures(t *testing.T) {
	f := setupAuthHandlers(t)
	postJSON(t, f.app, "/register", map[string]string{"email": "a@b.com", "password": "secret1"}, "")

	resp := postJSON(t, f.app, "/login", map[string]string{"email": "a@b.com", "password": "wrong12"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	resp = postJSON(t, f.app, "/login", map[string]string{"email": "nobody@b.com", "password": "secret1"}, "")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("POST", "/login", nil)
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAnonymous_MeAndLogout(t *testing.T) {
	f := setupAuthHandlers(t)
	resp := postJSON(t, f.app, "/anonymous", nil, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	cookie := cookieOf(resp)
	require.NotEmpty(t, cookie)

	req := httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: cookie})
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	user := decode(t, resp)["data"].(map[string]interface{})["user"].(map[string]interface{})
	assert.Equal(t, true, user["anonymous"])
	assert.True(t, strings.HasPrefix(user["user_id"].(string), "anon-"))

	req = httptest.NewRequest("DELETE", "/logout", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: cookie})
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	<-f.changes
	out := <-f.changes
	assert.False(t, out.SignedIn)

	req = httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: cookie})
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_NoSession(t *testing.T) {
	f := setupAuthHandlers(t)
	req := httptest.NewRequest("DELETE", "/logout", nil)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Values("Set-Cookie"))
}

func TestLogoutAll_EndsEverySession(t *testing.T) {
	f := setupAuthHandlers(t)
	creds := map[string]string{"email": "multi@example.com", "password": "secret1"}
	postJSON(t, f.app, "/register", creds, "")
	first := cookieOf(postJSON(t, f.app, "/login", creds, ""))
	second := cookieOf(postJSON(t, f.app, "/login", creds, ""))
	require.NotEqual(t, first, second)

	req := httptest.NewRequest("DELETE", "/sessions", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: first})
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: second})
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	keys, err := f.rdb.Keys(context.Background(), "session:*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}
