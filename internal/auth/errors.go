package auth

import (
	"errors"
	"fmt"

	apperrors "github.com/spec-kit/storefront-api/pkg/util"
)

var (
	// ErrInvalidCredentials covers unknown identifiers and mismatched secrets alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when registering an identifier that already exists.
	ErrEmailTaken = fmt.Errorf("%w: email already exists", ErrInvalidCredentials)

	// ErrMissingSession means no session artifact was presented.
	ErrMissingSession = errors.New("missing session")
	// ErrInvalidSession is the parent of every token validation failure.
	ErrInvalidSession = errors.New("invalid session")

	ErrTokenSignature = fmt.Errorf("%w: signature mismatch", ErrInvalidSession)
	ErrTokenExpired   = fmt.Errorf("%w: token expired", ErrInvalidSession)
	ErrTokenMalformed = fmt.Errorf("%w: malformed token", ErrInvalidSession)

	// ErrForbidden is returned by the authorization gates.
	ErrForbidden = errors.New("forbidden")

	// ErrMalformedCredentialRecord marks a stored hash that cannot be read.
	ErrMalformedCredentialRecord = errors.New("malformed credential record")
	ErrPasswordMismatch          = errors.New("password mismatch")
	ErrPasswordTooLong           = errors.New("password exceeds 72 bytes")

	// ErrTooManyAttempts is returned by the login throttle.
	ErrTooManyAttempts = errors.New("too many login attempts")
)

// IsAuthenticationFailure reports whether err should be answered as "authentication invalid".
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrMissingSession) || errors.Is(err, ErrInvalidSession)
}

// failureReason names the failure class for logs and metrics, never for clients.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingSession):
		return "missing"
	case errors.Is(err, ErrTokenExpired):
		return "expired"
	case errors.Is(err, ErrTokenSignature):
		return "signature"
	default:
		return "malformed"
	}
}

// AsDomainError maps auth failures onto client-facing errors. Session
// failures collapse into one message; anything unrecognized passes through.
func AsDomainError(err error) error {
	switch {
	case err == nil:
		return nil
	case IsAuthenticationFailure(err):
		return apperrors.NewUnauthorized("authentication invalid")
	case errors.Is(err, ErrEmailTaken):
		return apperrors.NewBadRequest("email already exists")
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrMalformedCredentialRecord):
		return apperrors.NewUnauthorized("invalid credentials")
	case errors.Is(err, ErrForbidden):
		return apperrors.NewForbidden("not authorized to access this route")
	case errors.Is(err, ErrTooManyAttempts):
		return apperrors.NewTooManyRequests("too many login attempts")
	case errors.Is(err, ErrPasswordTooLong):
		return apperrors.NewValidationError("password must be 72 bytes or fewer", nil)
	default:
		return err
	}
}
