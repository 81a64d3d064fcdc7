package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"golang.org/x/crypto/hkdf"

	"github.com/spec-kit/storefront-api/internal/domain"
)

const (
	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName = "token"
	// LogoutSentinel replaces the token on logout.
	LogoutSentinel = "logout"
)

// Keys holds the two keys derived from the server secret.
type Keys struct {
	Signing []byte
	// Cookie is the base64 AES-256 key expected by encryptcookie.
	Cookie string
}

// DeriveKeys expands the configured secret into independent signing and
// cookie sealing keys.
func DeriveKeys(secret []byte) (Keys, error) {
	signing, err := expand(secret, "storefront session token v1")
	if err != nil {
		return Keys{}, err
	}
	cookie, err := expand(secret, "storefront session cookie v1")
	if err != nil {
		return Keys{}, err
	}
	return Keys{Signing: signing, Cookie: base64.StdEncoding.EncodeToString(cookie)}, nil
}

func expand(secret []byte, info string) ([]byte, error) {
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), out); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return out, nil
}

// SessionCookies binds session tokens to the cookie channel. Cookie values
// are sealed with AES-GCM on top of the token's own signature.
type SessionCookies struct {
	tokens *TokenManager
	key    string
	secure bool
	now    func() time.Time
}

// NewSessionCookies builds the transport. secure toggles the Secure attribute
// and should only be set in production.
func NewSessionCookies(tokens *TokenManager, cookieKey string, secure bool) *SessionCookies {
	return &SessionCookies{tokens: tokens, key: cookieKey, secure: secure, now: time.Now}
}

// Tokens exposes the codec the transport issues with.
func (s *SessionCookies) Tokens() *TokenManager {
	return s.tokens
}

// Attach issues a token for identity and sets it as the session cookie.
// The cookie expires exactly when the token does.
func (s *SessionCookies) Attach(c *fiber.Ctx, identity domain.Identity) (time.Time, error) {
	token, expiresAt, err := s.tokens.Issue(identity, s.now())
	if err != nil {
		return time.Time{}, err
	}
	sealed, err := encryptcookie.EncryptCookie(token, s.key)
	if err != nil {
		return time.Time{}, fmt.Errorf("seal session cookie: %w", err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    sealed,
		Path:     "/",
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return expiresAt, nil
}

// Extract returns the raw token from the request. An absent cookie, the
// logout sentinel and a value failing the seal all report no session.
func (s *SessionCookies) Extract(c *fiber.Ctx) (string, bool) {
	sealed := c.Cookies(SessionCookieName)
	if sealed == "" || sealed == LogoutSentinel {
		return "", false
	}
	token, err := encryptcookie.DecryptCookie(sealed, s.key)
	if err != nil || token == "" || token == LogoutSentinel {
		return "", false
	}
	return token, true
}

// Identity resolves the request's session cookie against the transport's
// clock. It returns ErrMissingSession when no session is presented.
func (s *SessionCookies) Identity(c *fiber.Ctx) (domain.Identity, error) {
	token, ok := s.Extract(c)
	if !ok {
		return domain.Identity{}, ErrMissingSession
	}
	return s.tokens.Parse(token, s.now())
}

// Destroy overwrites the session cookie with the logout sentinel and a past
// expiry. Tokens copied elsewhere stay valid until they expire.
func (s *SessionCookies) Destroy(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    LogoutSentinel,
		Path:     "/",
		Expires:  s.now().Add(-time.Second),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
