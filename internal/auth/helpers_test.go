package auth

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/storefront-api/internal/domain"
	apperrors "github.com/spec-kit/storefront-api/pkg/util"
)

type recordedFailures struct {
	mu      sync.Mutex
	reasons []string
}

func (r *recordedFailures) RecordAuthFailure(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *recordedFailures) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

type harness struct {
	app      *fiber.App
	cookies  *SessionCookies
	mw       *AuthMiddleware
	failures *recordedFailures
	keys     Keys
}

func newHarness(t *testing.T, secure bool) *harness {
	t.Helper()

	keys, err := DeriveKeys([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	tokens := NewTokenManager(keys.Signing, time.Hour)
	cookies := NewSessionCookies(tokens, keys.Cookie, secure)
	cookies.now = func() time.Time { return issuedAt }

	failures := &recordedFailures{}
	mw := NewAuthMiddleware(cookies, zaptest.NewLogger(t), failures)
	mw.now = func() time.Time { return issuedAt.Add(time.Minute) }

	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		de := apperrors.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": de.Code, "message": de.Message}})
	}})

	app.Post("/login/:role", func(c *fiber.Ctx) error {
		identity := testIdentity()
		identity.Role = domain.Role(c.Params("role"))
		if _, err := cookies.Attach(c, identity); err != nil {
			return err
		}
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/logout", func(c *fiber.Ctx) error {
		cookies.Destroy(c)
		return c.SendStatus(http.StatusOK)
	})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		fromLocals, ok := IdentityFromContext(c)
		if !ok {
			return c.SendStatus(http.StatusTeapot)
		}
		fromCtx, ok := IdentityFrom(c.UserContext())
		if !ok || fromCtx != fromLocals {
			return c.SendStatus(http.StatusTeapot)
		}
		return c.JSON(fromLocals)
	})
	app.Get("/whoami", func(c *fiber.Ctx) error {
		identity, err := cookies.Identity(c)
		if err != nil {
			return AsDomainError(err)
		}
		return c.JSON(identity)
	})
	app.Get("/admin", mw.Handle, AuthorizeRoles(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("admin area")
	})
	app.Get("/unguarded-admin", AuthorizeRoles(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendString("unreachable")
	})

	return &harness{app: app, cookies: cookies, mw: mw, failures: failures, keys: keys}
}

func (h *harness) do(t *testing.T, method, path string, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("response carries no %q cookie", SessionCookieName)
	return nil
}

func errorBody(t *testing.T, resp *http.Response) (string, string) {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return body.Error.Code, body.Error.Message
}
