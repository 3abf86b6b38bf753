package domain

import (
	"errors"
	"strings"
)

const (
	RoleUser = "user"

	AnonymousOwnerPrefix = "anon:"
)

var (
	MessageFailedBodyRequest    = "failed to parse request body"
	MessageFailedProcessRequest = "failed to process request"
	MessageFailedGetToken       = "failed to get token"
	MessageFailedTokenInvalid   = "failed to token invalid"
	MessageFailedOwnerMissing   = "missing client id or authorization"
	MessageNotImplemented       = "not implemented"

	// Error taxonomy shared by every package.
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrProviderFailure   = errors.New("provider failure")
	ErrValidationFailure = errors.New("validation failure")

	ErrParseUUID       = errors.New("failed to parse UUID")
	ErrUserNotAllowed  = errors.New("user not allowed")
	ErrTokenNotFound   = errors.New("failed to token not found")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrOwnerMissing    = errors.New("owner missing")
	ErrNotImplemented  = errors.New("not implemented")
)

const (
	CodeInvalidInput      = "INVALID_INPUT"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeProviderFailure   = "PROVIDER_FAILURE"
	CodeValidationFailure = "VALIDATION_FAILURE"
	CodeNotFound          = "NOT_FOUND"
	CodeAnalysisInFlight  = "ANALYSIS_IN_FLIGHT"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeNotImplemented    = "NOT_IMPLEMENTED"
	CodeInternal          = "INTERNAL_ERROR"
)

type (
	// Identity is the resolved caller returned by the auth collaborator.
	Identity struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}

	// Owner keys all per-user in-memory and local state. Authenticated callers
	// are keyed by user id, anonymous ones by their client id.
	Owner struct {
		Key      string
		Identity *Identity
	}
)

func NewOwner(identity *Identity, clientID string) (Owner, error) {
	if identity != nil && identity.ID != "" {
		return Owner{Key: identity.ID, Identity: identity}, nil
	}
	if clientID == "" {
		return Owner{}, ErrOwnerMissing
	}
	return Owner{Key: AnonymousOwnerPrefix + clientID}, nil
}

// OwnerFromKey rebuilds an owner from a stored key, as offline jobs see it.
// A key without the anonymous prefix is a user id and gets a bare identity so
// its state still syncs.
func OwnerFromKey(key string) Owner {
	if key == "" || strings.HasPrefix(key, AnonymousOwnerPrefix) {
		return Owner{Key: key}
	}
	return Owner{Key: key, Identity: &Identity{ID: key}}
}

func (o Owner) Authenticated() bool {
	return o.Identity != nil
}

// ErrorCode maps an error onto the errorCode field of API responses.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAnalysisInFlight):
		return CodeAnalysisInFlight
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrMealNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrValidationFailure):
		return CodeValidationFailure
	case errors.Is(err, ErrProviderFailure):
		return CodeProviderFailure
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrOwnerMissing), errors.Is(err, ErrParseUUID):
		return CodeInvalidInput
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrTokenExpired), errors.Is(err, ErrTokenInvalid), errors.Is(err, ErrTokenNotFound):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrUserNotAllowed):
		return CodeForbidden
	case errors.Is(err, ErrNotImplemented):
		return CodeNotImplemented
	default:
		return CodeInternal
	}
}
