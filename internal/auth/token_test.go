package auth

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/storefront-api/internal/domain"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

var issuedAt = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func testIdentity() domain.Identity {
	return domain.Identity{SubjectID: "u-123", DisplayName: "Ada Lovelace", Role: domain.RoleUser}
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager(testSigningKey, time.Hour)

	for _, identity := range []domain.Identity{
		testIdentity(),
		{SubjectID: "a-1", DisplayName: "", Role: domain.RoleAdmin},
	} {
		token, exp, err := tm.Issue(identity, issuedAt)
		require.NoError(t, err)
		assert.Equal(t, issuedAt.Add(time.Hour), exp)

		for _, at := range []time.Duration{0, time.Minute, time.Hour - time.Second} {
			got, err := tm.Parse(token, issuedAt.Add(at))
			require.NoError(t, err, "parse at +%s", at)
			if diff := cmp.Diff(identity, got); diff != "" {
				t.Fatalf("identity mismatch (-want +got):\n%s", diff)
			}
		}
	}
}

func TestTokenExpiry(t *testing.T) {
	tm := NewTokenManager(testSigningKey, time.Hour)
	token, exp, err := tm.Issue(testIdentity(), issuedAt)
	require.NoError(t, err)

	for _, at := range []time.Time{exp, exp.Add(time.Nanosecond), exp.Add(48 * time.Hour)} {
		_, err := tm.Parse(token, at)
		assert.ErrorIs(t, err, ErrTokenExpired)
		assert.ErrorIs(t, err, ErrInvalidSession)
	}
}

func TestTokenIssueTruncatesToSeconds(t *testing.T) {
	tm := NewTokenManager(testSigningKey, time.Minute)
	token, exp, err := tm.Issue(testIdentity(), issuedAt.Add(750*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Minute), exp)

	claims, err := tm.ParseClaims(token, issuedAt)
	require.NoError(t, err)
	meta := claims.Metadata()
	assert.Equal(t, issuedAt, meta.IssuedAt.UTC())
	assert.Equal(t, exp, meta.ExpiresAt.UTC())
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, domain.RoleUser, meta.Role)
}

func TestTokenTamperingIsSignatureFailure(t *testing.T) {
	tm := NewTokenManager(testSigningKey, time.Hour)
	token, _, err := tm.Issue(testIdentity(), issuedAt)
	require.NoError(t, err)

	for i := 0; i < len(token); i++ {
		if token[i] == '.' {
			continue
		}
		flipped := []byte(token)
		flipped[i] ^= 0x01
		_, err := tm.Parse(string(flipped), issuedAt)
		require.ErrorIs(t, err, ErrTokenSignature, "flip at %d", i)
	}
}

func TestTokenFromOtherSecretRejected(t *testing.T) {
	other := NewTokenManager([]byte("ffffffffffffffffffffffffffffffff"), time.Hour)
	token, _, err := other.Issue(testIdentity(), issuedAt)
	require.NoError(t, err)

	_, err = NewTokenManager(testSigningKey, time.Hour).Parse(token, issuedAt)
	assert.ErrorIs(t, err, ErrTokenSignature)
}

func TestTokenRejectsForeignShapes(t *testing.T) {
	tm := NewTokenManager(testSigningKey, time.Hour)

	sign := func(method jwt.SigningMethod, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(testSigningKey)
		require.NoError(t, err)
		return s
	}
	exp := jwt.NewNumericDate(issuedAt.Add(time.Hour))

	tests := map[string]struct {
		token string
		want  error
	}{
		"empty": {token: "", want: ErrTokenMalformed},
		"not a jwt": {token: "logout", want: ErrTokenMalformed},
		"too many segments": {token: "a.b.c.d", want: ErrTokenMalformed},
		"hs512": {
			token: sign(jwt.SigningMethodHS512, &Claims{SubjectID: "u", Role: domain.RoleUser,
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}),
			want: ErrTokenSignature,
		},
		"unknown role": {
			token: sign(jwt.SigningMethodHS256, jwt.MapClaims{"subjectId": "u", "role": "root", "exp": exp.Unix()}),
			want:  ErrTokenMalformed,
		},
		"missing exp": {
			token: sign(jwt.SigningMethodHS256, jwt.MapClaims{"subjectId": "u", "role": "user"}),
			want:  ErrTokenMalformed,
		},
		"missing subject": {
			token: sign(jwt.SigningMethodHS256, jwt.MapClaims{"role": "user", "exp": exp.Unix()}),
			want:  ErrTokenMalformed,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := tm.Parse(tc.token, issuedAt)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestTokenIssueValidatesIdentity(t *testing.T) {
	tm := NewTokenManager(testSigningKey, time.Hour)

	_, _, err := tm.Issue(domain.Identity{Role: domain.RoleUser}, issuedAt)
	assert.Error(t, err)

	_, _, err = tm.Issue(domain.Identity{SubjectID: "u", Role: "owner"}, issuedAt)
	assert.ErrorIs(t, err, domain.ErrUnknownRole)
}

func TestTokenManagerCopiesSecret(t *testing.T) {
	secret := []byte(strings.Repeat("k", 32))
	tm := NewTokenManager(secret, 0)
	assert.Equal(t, DefaultSessionTTL, tm.TTL())

	token, _, err := tm.Issue(testIdentity(), issuedAt)
	require.NoError(t, err)

	secret[0] = 'x'
	_, err = tm.Parse(token, issuedAt)
	assert.NoError(t, err)
}
