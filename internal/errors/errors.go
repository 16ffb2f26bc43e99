package errors

import stderrors "errors"

type ErrorType string

const (
	ErrorTypeNotFound         ErrorType = "NOT_FOUND"
	ErrorTypeValidation       ErrorType = "VALIDATION"
	ErrorTypeInternal         ErrorType = "INTERNAL"
	ErrorTypeObjectNotFound   ErrorType = "OBJECT_NOT_FOUND"
	ErrorTypeMalformedObject  ErrorType = "MALFORMED_OBJECT"
	ErrorTypeInvalidHash      ErrorType = "INVALID_HASH"
	ErrorTypeNoCommonAncestor ErrorType = "NO_COMMON_ANCESTOR"
	ErrorTypeNotRepository    ErrorType = "NOT_A_REPOSITORY"
	ErrorTypeNothingToCommit  ErrorType = "NOTHING_TO_COMMIT"
)

// Sentinels for errors.Is. Any *Error with the same Type matches.
var (
	ErrNotFound         = &Error{Type: ErrorTypeNotFound, Message: "not found"}
	ErrObjectNotFound   = &Error{Type: ErrorTypeObjectNotFound, Message: "object not found"}
	ErrMalformedObject  = &Error{Type: ErrorTypeMalformedObject, Message: "malformed object"}
	ErrInvalidHash      = &Error{Type: ErrorTypeInvalidHash, Message: "invalid object hash"}
	ErrNoCommonAncestor = &Error{Type: ErrorTypeNoCommonAncestor, Message: "no common ancestor"}
	ErrNotRepository    = &Error{Type: ErrorTypeNotRepository, Message: "not a minigit repository"}
	ErrNothingToCommit  = &Error{Type: ErrorTypeNothingToCommit, Message: "nothing to commit"}
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches on Type so that errors built by the constructors below satisfy
// errors.Is against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
	}
}

func ObjectNotFound(hash string) *Error {
	return &Error{
		Type:    ErrorTypeObjectNotFound,
		Message: "object not found: " + hash,
		Details: hash,
	}
}

func MalformedObject(hash string, reason string) *Error {
	return &Error{
		Type:    ErrorTypeMalformedObject,
		Message: "malformed object " + hash + ": " + reason,
		Details: hash,
	}
}

func InvalidHash(hash string) *Error {
	return &Error{
		Type:    ErrorTypeInvalidHash,
		Message: "invalid object hash: " + hash,
		Details: hash,
	}
}

func NoCommonAncestor(a, b string) *Error {
	return &Error{
		Type:    ErrorTypeNoCommonAncestor,
		Message: "no common ancestor between " + a + " and " + b,
		Details: []string{a, b},
	}
}

func NotRepository(root string) *Error {
	return &Error{
		Type:    ErrorTypeNotRepository,
		Message: "not a minigit repository: " + root,
		Details: root,
	}
}

func Internal(message string) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
	}
}

// IsNotFound reports whether err is, or wraps, a NOT_FOUND error.
func IsNotFound(err error) bool {
	return stderrors.Is(err, ErrNotFound)
}
