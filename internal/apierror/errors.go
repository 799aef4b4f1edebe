package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthErrorKind identifies why a request failed authentication or authorization
type AuthErrorKind int

const (
	// MissingOrMalformedHeader means no usable "Authorization: Bearer <token>" header was sent
	MissingOrMalformedHeader AuthErrorKind = iota + 1
	// MalformedToken means the token could not be decoded as a signed JWT
	MalformedToken
	// UnknownSigningKey means the token's key id is absent or not in the trusted key set
	UnknownSigningKey
	// InvalidSignature means the algorithm was not acceptable or the signature did not verify
	InvalidSignature
	// InvalidClaims means the token is expired or its issuer/audience do not match
	InvalidClaims
	// InsufficientScope means the verified claims lack the route's permission
	InsufficientScope
)

func (k AuthErrorKind) String() string {
	switch k {
	case MissingOrMalformedHeader:
		return "missing_or_malformed_header"
	case MalformedToken:
		return "malformed_token"
	case UnknownSigningKey:
		return "unknown_signing_key"
	case InvalidSignature:
		return "invalid_signature"
	case InvalidClaims:
		return "invalid_claims"
	case InsufficientScope:
		return "insufficient_scope"
	default:
		return "unknown"
	}
}

// AuthError is returned by token verification and scope checks.
// Err carries the underlying detail for server-side logs only.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

// NewAuthError creates an AuthError of the given kind wrapping err (which may be nil)
func NewAuthError(kind AuthErrorKind, err error) *AuthError {
	return &AuthError{Kind: kind, Err: err}
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + e.Kind.String()
	}
	return fmt.Sprintf("auth: %s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error. Only a missing or malformed
// header is a 401; every failure past that point is a 403.
func (e *AuthError) Status() int {
	if e.Kind == MissingOrMalformedHeader {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

// ValidationError is a request body that failed the request contract.
// Code is 400 for undecodable input and 422 for well-formed but invalid input.
type ValidationError struct {
	Code    int
	Field   string
	Message string
}

// BadRequest creates a 400 ValidationError
func BadRequest(message string) *ValidationError {
	return &ValidationError{Code: http.StatusBadRequest, Message: message}
}

// Unprocessable creates a 422 ValidationError for the given field
func Unprocessable(field, message string) *ValidationError {
	return &ValidationError{Code: http.StatusUnprocessableEntity, Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// Status returns the HTTP status for the error
func (e *ValidationError) Status() int {
	if e.Code == 0 {
		return http.StatusUnprocessableEntity
	}
	return e.Code
}

// NotFoundError means the addressed resource does not exist
type NotFoundError struct {
	Resource string
	ID       any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Resource, e.ID)
}

// StorageError is a failure reported by the storage collaborator
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// InternalError is the catch-all for anything the client cannot act on
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal: %v", e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }

// Status maps any error onto the HTTP status the boundary responds with.
// Unknown errors are 500.
func Status(err error) int {
	var authErr *AuthError
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &authErr):
		return authErr.Status()
	case errors.As(err, &validationErr):
		return validationErr.Status()
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
