package authkit

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes are stable machine-readable identifiers surfaced to API clients.
const (
	TextCodeInvalidCreds      = "AUTH_INVALID_CREDENTIALS"
	TextCodeEmailNotVerified  = "AUTH_EMAIL_NOT_VERIFIED"
	TextCodeTokenExpired      = "AUTH_TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "AUTH_TOKEN_MALFORMED"
	TextCodeCodeInvalid       = "AUTH_CODE_INVALID"
	TextCodeCredentialFormat  = "AUTH_CREDENTIAL_FORMAT"
	TextCodeEmailDelivery     = "EMAIL_DELIVERY_FAILED"
	TextCodeDuplicateIdentity = "AUTH_DUPLICATE_IDENTITY"
	TextCodeEmptyPassword     = "AUTH_EMPTY_PASSWORD"
	TextCodeSessionNotFound   = "AUTH_SESSION_NOT_FOUND"
)

// ErrInvalidCredentials covers both an unknown email and a wrong password so
// responses cannot be used to enumerate accounts.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCreds)

// ErrEmailNotVerified is returned on signin with valid credentials but a
// pending email verification.
var ErrEmailNotVerified = goerrors.New("email address has not been verified", goerrors.CategoryAuth).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeEmailNotVerified)

// ErrTokenExpired denotes a token past its expiry, or one invalidated by a
// later password change. Terminal for the request, never retried.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed denotes a missing, unparseable or badly signed token.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrCodeExpiredOrInvalid deliberately conflates "wrong code" and "expired
// code" so the endpoint cannot be used as an oracle.
var ErrCodeExpiredOrInvalid = goerrors.New("invalid or expired code", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeCodeInvalid)

// ErrIdentityNotFound is the error we return for non found identities.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCredentialFormat signals a malformed stored password hash. This is a
// data-corruption signal for that record, not a user error.
var ErrCredentialFormat = goerrors.New("stored credential hash is malformed", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeCredentialFormat)

// ErrEmailDeliveryFailure is surfaced when a downstream send fails. Writes
// that preceded the send are not rolled back.
var ErrEmailDeliveryFailure = goerrors.New("unable to deliver email", goerrors.CategoryOperation).
	WithTextCode(TextCodeEmailDelivery)

// ErrDuplicateIdentity propagates a uniqueness violation on email from the
// store.
var ErrDuplicateIdentity = goerrors.New("an identity with this email already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeDuplicateIdentity)

// ErrNoEmptyString rejects empty passwords before they reach bcrypt.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmptyPassword)

// ErrUnableToFindSession is the error when the request carries no token.
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeSessionNotFound)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
