package http

import (
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/storefront-api/internal/api/http/handlers"
	"github.com/spec-kit/storefront-api/internal/auth"
	"github.com/spec-kit/storefront-api/internal/config"
	"github.com/spec-kit/storefront-api/internal/domain"
	"github.com/spec-kit/storefront-api/internal/events"
	"github.com/spec-kit/storefront-api/internal/observability"
	"github.com/spec-kit/storefront-api/internal/repository"
	"github.com/spec-kit/storefront-api/internal/service"
)

const sessionTTL = 2 * time.Hour

type testServer struct {
	app *fiber.App
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	keys, err := auth.DeriveKeys([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	cookies := auth.NewSessionCookies(auth.NewTokenManager(keys.Signing, sessionTTL), keys.Cookie, false)

	metrics := observability.NewMetrics()
	repo := repository.NewMemoryUserRepository()
	authService := service.NewAuthService(config.AuthConfig{HashCost: bcrypt.MinCost}, service.AuthDependencies{
		UserRepo: repo,
		Throttle: auth.NewLocalLoginThrottle(3, time.Minute, logger),
		Events:   events.NewInMemoryDispatcher(nil),
		Logger:   logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("storefront-api", "test", nil),
		Auth:           handlers.NewAuthHandler(authService, cookies),
		Users:          handlers.NewUsersHandler(authService, service.NewUserService(repo), cookies),
		AuthMiddleware: auth.NewAuthMiddleware(cookies, logger, metrics),
		Metrics:        metrics,
	})
	return &testServer{app: app}
}

func (s *testServer) do(t *testing.T, method, path, body string, cookies ...*stdhttp.Cookie) *stdhttp.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type sessionBody struct {
	Data struct {
		User domain.Identity `json:"user"`
	} `json:"data"`
}

func decode(t *testing.T, resp *stdhttp.Response, out any) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out), string(raw))
}

func errorOf(t *testing.T, resp *stdhttp.Response) (string, string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode(t, resp, &body)
	return body.Error.Code, body.Error.Message
}

func tokenCookie(t *testing.T, resp *stdhttp.Response) *stdhttp.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	t.Fatalf("response carries no %q cookie", auth.SessionCookieName)
	return nil
}

func (s *testServer) register(t *testing.T, name, email string) (domain.Identity, *stdhttp.Cookie) {
	t.Helper()
	resp := s.do(t, fiber.MethodPost, "/api/v1/auth/register",
		`{"name":"`+name+`","email":"`+email+`","password":"correct horse"}`)
	require.Equal(t, stdhttp.StatusCreated, resp.StatusCode)
	cookie := tokenCookie(t, resp)
	var body sessionBody
	decode(t, resp, &body)
	return body.Data.User, cookie
}

func TestRegisterBootstrapsAdmin(t *testing.T) {
	s := newTestServer(t)

	admin, _ := s.register(t, "Ada", "ada@example.com")
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.NotEmpty(t, admin.SubjectID)

	user, _ := s.register(t, "Bob", "bob@example.com")
	assert.Equal(t, domain.RoleUser, user.Role)

	resp := s.do(t, fiber.MethodPost, "/api/v1/auth/register",
		`{"name":"Eve","email":"ada@example.com","password":"whatever"}`)
	require.Equal(t, stdhttp.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, resp.Cookies())
	code, msg := errorOf(t, resp)
	assert.Equal(t, "BAD_REQUEST", code)
	assert.Equal(t, "email already exists", msg)
}

func TestRegisterValidatesPayload(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, fiber.MethodPost, "/api/v1/auth/register", `{"name":"Ada","email":"ada@example.com"}`)
	require.Equal(t, stdhttp.StatusBadRequest, resp.StatusCode)
	code, _ := errorOf(t, resp)
	assert.Equal(t, "VALIDATION_FAILED", code)
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ada", "ada@example.com")

	before := time.Now()
	resp := s.do(t, fiber.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	cookie := tokenCookie(t, resp)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.WithinDuration(t, before.Add(sessionTTL), cookie.Expires, 5*time.Second)

	var body sessionBody
	decode(t, resp, &body)
	assert.Equal(t, "Ada", body.Data.User.DisplayName)

	me := s.do(t, fiber.MethodGet, "/api/v1/users/showMe", "", cookie)
	require.Equal(t, stdhttp.StatusOK, me.StatusCode)
	var shown sessionBody
	decode(t, me, &shown)
	assert.Equal(t, body.Data.User, shown.Data.User)
}

func TestLoginFailuresAreUniform(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ada", "ada@example.com")

	wrongPassword := s.do(t, fiber.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"nope"}`)
	unknownEmail := s.do(t, fiber.MethodPost, "/api/v1/auth/login", `{"email":"who@example.com","password":"nope"}`)

	for _, resp := range []*stdhttp.Response{wrongPassword, unknownEmail} {
		require.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, resp.Cookies())
		code, msg := errorOf(t, resp)
		assert.Equal(t, "UNAUTHORIZED", code)
		assert.Equal(t, "invalid credentials", msg)
	}
}

func TestLoginThrottle(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ada", "ada@example.com")

	for i := 0; i < 3; i++ {
		resp := s.do(t, fiber.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"nope"}`)
		require.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
	}
	resp := s.do(t, fiber.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"correct horse"}`)
	require.Equal(t, stdhttp.StatusTooManyRequests, resp.StatusCode)
	code, _ := errorOf(t, resp)
	assert.Equal(t, "TOO_MANY_REQUESTS", code)
}

func TestAdminRouteForbidsUsers(t *testing.T) {
	s := newTestServer(t)
	_, adminCookie := s.register(t, "Ada", "ada@example.com")
	_, userCookie := s.register(t, "Bob", "bob@example.com")

	resp := s.do(t, fiber.MethodGet, "/api/v1/users", "", userCookie)
	require.Equal(t, stdhttp.StatusForbidden, resp.StatusCode)
	code, msg := errorOf(t, resp)
	assert.Equal(t, "FORBIDDEN", code)
	assert.Equal(t, "not authorized to access this route", msg)

	resp = s.do(t, fiber.MethodGet, "/api/v1/users", "", adminCookie)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	var listed struct {
		Data struct {
			Count int `json:"count"`
			Users []struct {
				Name  string `json:"name"`
				Email string `json:"email"`
			} `json:"users"`
		} `json:"data"`
	}
	decode(t, resp, &listed)
	require.Equal(t, 1, listed.Data.Count)
	assert.Equal(t, "Bob", listed.Data.Users[0].Name)
}

func TestUserRecordOwnership(t *testing.T) {
	s := newTestServer(t)
	admin, adminCookie := s.register(t, "Ada", "ada@example.com")
	bob, bobCookie := s.register(t, "Bob", "bob@example.com")
	carol, _ := s.register(t, "Carol", "carol@example.com")

	cases := map[string]struct {
		path   string
		cookie *stdhttp.Cookie
		want   int
	}{
		"owner reads own record":      {"/api/v1/users/" + bob.SubjectID, bobCookie, stdhttp.StatusOK},
		"user reads another record":   {"/api/v1/users/" + carol.SubjectID, bobCookie, stdhttp.StatusForbidden},
		"user reads the admin record": {"/api/v1/users/" + admin.SubjectID, bobCookie, stdhttp.StatusForbidden},
		"admin reads any record":      {"/api/v1/users/" + carol.SubjectID, adminCookie, stdhttp.StatusOK},
		"admin reads missing record":  {"/api/v1/users/missing", adminCookie, stdhttp.StatusNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := s.do(t, fiber.MethodGet, tc.path, "", tc.cookie)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestLogoutInvalidatesCookie(t *testing.T) {
	s := newTestServer(t)
	_, cookie := s.register(t, "Ada", "ada@example.com")

	resp := s.do(t, fiber.MethodGet, "/api/v1/auth/logout", "", cookie)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	cleared := tokenCookie(t, resp)
	assert.Equal(t, auth.LogoutSentinel, cleared.Value)
	assert.True(t, cleared.Expires.Before(time.Now()))

	withSentinel := s.do(t, fiber.MethodGet, "/api/v1/users/showMe", "", &stdhttp.Cookie{Name: auth.SessionCookieName, Value: auth.LogoutSentinel})
	withoutCookie := s.do(t, fiber.MethodGet, "/api/v1/users/showMe", "")

	for _, resp := range []*stdhttp.Response{withSentinel, withoutCookie} {
		require.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)
		code, msg := errorOf(t, resp)
		assert.Equal(t, "UNAUTHORIZED", code)
		assert.Equal(t, "authentication invalid", msg)
	}
}

func TestUpdateUserReissuesSession(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "Ada", "ada@example.com")
	_, cookie := s.register(t, "Bob", "bob@example.com")

	resp := s.do(t, fiber.MethodPatch, "/api/v1/users/updateUser", `{"name":"Robert","email":"robert@example.com"}`, cookie)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	fresh := tokenCookie(t, resp)

	me := s.do(t, fiber.MethodGet, "/api/v1/users/showMe", "", fresh)
	require.Equal(t, stdhttp.StatusOK, me.StatusCode)
	var shown sessionBody
	decode(t, me, &shown)
	assert.Equal(t, "Robert", shown.Data.User.DisplayName)

	taken := s.do(t, fiber.MethodPatch, "/api/v1/users/updateUser", `{"name":"Robert","email":"ada@example.com"}`, fresh)
	assert.Equal(t, stdhttp.StatusBadRequest, taken.StatusCode)
}

func TestUpdatePassword(t *testing.T) {
	s := newTestServer(t)
	_, cookie := s.register(t, "Ada", "ada@example.com")

	resp := s.do(t, fiber.MethodPatch, "/api/v1/users/updateUserPassword", `{"oldPassword":"wrong","newPassword":"battery staple"}`, cookie)
	require.Equal(t, stdhttp.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, fiber.MethodPatch, "/api/v1/users/updateUserPassword", `{"oldPassword":"correct horse","newPassword":"battery staple"}`, cookie)
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	resp = s.do(t, fiber.MethodPost, "/api/v1/auth/login", `{"email":"ada@example.com","password":"battery staple"}`)
	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, fiber.MethodGet, "/health/live", "")
	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	resp = s.do(t, fiber.MethodGet, "/health/ready", "")
	assert.Equal(t, stdhttp.StatusOK, resp.StatusCode)

	rejected := s.do(t, fiber.MethodGet, "/api/v1/users/showMe", "")
	require.Equal(t, stdhttp.StatusUnauthorized, rejected.StatusCode)

	resp = s.do(t, fiber.MethodGet, "/metrics", "")
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `storefront_auth_failures_total{reason="missing"} 1`)
}
