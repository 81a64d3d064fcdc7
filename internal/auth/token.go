package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/storefront-api/internal/domain"
)

// DefaultSessionTTL is used when the manager is built without a positive ttl.
const DefaultSessionTTL = 24 * time.Hour

// TokenManager issues and validates HS256 session tokens. The secret and ttl
// are fixed at construction.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager. The secret is copied.
func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenManager{secret: key, ttl: ttl}
}

// Claims describes the JWT payload.
type Claims struct {
	SubjectID   string      `json:"subjectId"`
	DisplayName string      `json:"displayName"`
	Role        domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// TTL returns the validity window of issued tokens.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Issue signs a token for identity, valid from now until now+ttl.
func (tm *TokenManager) Issue(identity domain.Identity, now time.Time) (string, time.Time, error) {
	if identity.SubjectID == "" {
		return "", time.Time{}, errors.New("issue token: empty subject")
	}
	if !identity.Role.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: %w: %q", domain.ErrUnknownRole, identity.Role)
	}

	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		SubjectID:   identity.SubjectID,
		DisplayName: identity.DisplayName,
		Role:        identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// Parse validates the token as of now and returns the identity it carries.
// Every failure wraps ErrInvalidSession.
func (tm *TokenManager) Parse(tokenStr string, now time.Time) (domain.Identity, error) {
	claims, err := tm.ParseClaims(tokenStr, now)
	if err != nil {
		return domain.Identity{}, err
	}
	return domain.Identity{
		SubjectID:   claims.SubjectID,
		DisplayName: claims.DisplayName,
		Role:        claims.Role,
	}, nil
}

// ParseClaims validates the token as of now and returns the full claims.
func (tm *TokenManager) ParseClaims(tokenStr string, now time.Time) (*Claims, error) {
	if err := tm.verifySignature(tokenStr); err != nil {
		return nil, err
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.SubjectID == "" || !claims.Role.Valid() {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// verifySignature checks the HMAC over the raw segments before any of them
// is decoded, so a flipped byte anywhere is reported as a signature failure.
func (tm *TokenManager) verifySignature(tokenStr string) error {
	if strings.Count(tokenStr, ".") != 2 {
		return ErrTokenMalformed
	}
	dot := strings.LastIndexByte(tokenStr, '.')
	sig, err := base64.RawURLEncoding.Strict().DecodeString(tokenStr[dot+1:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	}
	if err := jwt.SigningMethodHS256.Verify(tokenStr[:dot], sig, tm.secret); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	}
	return nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

// Metadata describes the token without exposing its signature.
func (c *Claims) Metadata() domain.Token {
	token := domain.Token{ID: c.ID, SubjectID: c.SubjectID, Role: c.Role}
	if c.IssuedAt != nil {
		token.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		token.ExpiresAt = c.ExpiresAt.Time
	}
	return token
}
