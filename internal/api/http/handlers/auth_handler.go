package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-api/internal/api/dto"
	"github.com/spec-kit/storefront-api/internal/auth"
	"github.com/spec-kit/storefront-api/internal/service"
	apperrors "github.com/spec-kit/storefront-api/pkg/util"
)

// AuthHandler exposes register, login and logout.
type AuthHandler struct {
	auth    *service.AuthService
	cookies *auth.SessionCookies
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies *auth.SessionCookies) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies}
}

// Register handles POST /api/v1/auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}

	user, err := h.auth.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return mapError(err)
	}

	identity := user.Identity()
	exp, err := h.cookies.Attach(c, identity)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": dto.SessionResponse{User: identity, ExpiresAt: exp},
	})
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	user, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return mapError(err)
	}

	identity := user.Identity()
	exp, err := h.cookies.Attach(c, identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.SessionResponse{User: identity, ExpiresAt: exp},
	})
}

// Logout handles GET /api/v1/auth/logout. It needs no session; a present one
// is only used to attribute the audit event.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if identity, err := h.cookies.Identity(c); err == nil {
		h.auth.Logout(c.UserContext(), identity)
	}
	h.cookies.Destroy(c)
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "user logged out"}})
}
