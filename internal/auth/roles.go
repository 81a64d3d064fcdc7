package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/storefront-api/internal/domain"
)

// RequireRole succeeds iff identity holds one of the allowed roles.
func RequireRole(identity domain.Identity, allowed ...domain.Role) error {
	for _, role := range allowed {
		if identity.Role == role {
			return nil
		}
	}
	return ErrForbidden
}

// RequireOwnerOrAdmin succeeds for admins and for the subject that owns the
// resource. ownerID must already be loaded by the caller.
func RequireOwnerOrAdmin(identity domain.Identity, ownerID string) error {
	if identity.IsAdmin() {
		return nil
	}
	if identity.SubjectID != "" && identity.SubjectID == ownerID {
		return nil
	}
	return ErrForbidden
}

// AuthorizeRoles gates a route to the allowed roles. It must run after
// AuthMiddleware.Handle.
func AuthorizeRoles(allowed ...domain.Role) fiber.Handler {
	allowed = append([]domain.Role(nil), allowed...)
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return AsDomainError(ErrMissingSession)
		}
		if err := RequireRole(identity, allowed...); err != nil {
			return AsDomainError(err)
		}
		return c.Next()
	}
}
