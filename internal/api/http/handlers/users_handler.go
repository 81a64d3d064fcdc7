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

// UsersHandler exposes account endpoints behind the auth middleware.
type UsersHandler struct {
	auth    *service.AuthService
	users   *service.UserService
	cookies *auth.SessionCookies
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, users *service.UserService, cookies *auth.SessionCookies) *UsersHandler {
	return &UsersHandler{auth: authService, users: users, cookies: cookies}
}

// List handles GET /api/v1/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.users.List(c.UserContext())
	if err != nil {
		return mapError(err)
	}
	resp := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, dto.NewUserResponse(user))
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"users": resp, "count": len(resp)}})
}

// ShowMe handles GET /api/v1/users/showMe.
func (h *UsersHandler) ShowMe(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return auth.AsDomainError(auth.ErrMissingSession)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": identity}})
}

// Get handles GET /api/v1/users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return auth.AsDomainError(auth.ErrMissingSession)
	}
	user, err := h.users.Get(c.UserContext(), identity, c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"user": dto.NewUserResponse(user)}})
}

// UpdateUser handles PATCH /api/v1/users/updateUser. The session is reissued
// so the token carries the new display name.
func (h *UsersHandler) UpdateUser(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return auth.AsDomainError(auth.ErrMissingSession)
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		return apperrors.NewValidationError("name and email required", nil)
	}

	user, err := h.auth.UpdateProfile(c.UserContext(), identity, req.Name, req.Email)
	if err != nil {
		return mapError(err)
	}

	updated := user.Identity()
	exp, err := h.cookies.Attach(c, updated)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": dto.SessionResponse{User: updated, ExpiresAt: exp},
	})
}

// UpdatePassword handles PATCH /api/v1/users/updateUserPassword.
func (h *UsersHandler) UpdatePassword(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return auth.AsDomainError(auth.ErrMissingSession)
	}

	var req dto.UpdatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("oldPassword and newPassword required", nil)
	}

	if err := h.auth.ChangePassword(c.UserContext(), identity, req.OldPassword, req.NewPassword); err != nil {
		return mapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"message": "password updated"}})
}
