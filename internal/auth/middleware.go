package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-api/internal/domain"
)

const identityKey = "auth_identity"

type ctxKey int

const identityCtxKey ctxKey = 1

// FailureRecorder counts rejected sessions by reason.
type FailureRecorder interface {
	RecordAuthFailure(reason string)
}

// AuthMiddleware resolves the session cookie into a request identity.
type AuthMiddleware struct {
	cookies *SessionCookies
	logger  *zap.Logger
	metrics FailureRecorder
	now     func() time.Time
}

// NewAuthMiddleware constructs middleware. metrics may be nil.
func NewAuthMiddleware(cookies *SessionCookies, logger *zap.Logger, metrics FailureRecorder) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{cookies: cookies, logger: logger, metrics: metrics, now: time.Now}
}

// Handle enforces authentication for protected routes. Every failure gets the
// same response; the reason only reaches logs and metrics.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	identity, err := m.authenticate(c)
	if err != nil {
		reason := failureReason(err)
		m.logger.Debug("session rejected",
			zap.String("reason", reason),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		if m.metrics != nil {
			m.metrics.RecordAuthFailure(reason)
		}
		return AsDomainError(err)
	}

	c.Locals(identityKey, identity)
	c.SetUserContext(WithIdentity(c.UserContext(), identity))
	return c.Next()
}

func (m *AuthMiddleware) authenticate(c *fiber.Ctx) (domain.Identity, error) {
	token, ok := m.cookies.Extract(c)
	if !ok {
		return domain.Identity{}, ErrMissingSession
	}
	return m.cookies.Tokens().Parse(token, m.now())
}

// IdentityFromContext retrieves the authenticated identity of the request.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}

// WithIdentity returns a context carrying identity.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFrom reads the identity stored by WithIdentity.
func IdentityFrom(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityCtxKey).(domain.Identity)
	return identity, ok
}
