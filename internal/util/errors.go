package util

import "errors"

// Sentinel errors form the error taxonomy of the results pipeline. Callers
// match with errors.Is; messages wrapped around them are not a stable contract.
var (
	ErrValidation    = errors.New("validation failed")
	ErrLockedRecord  = errors.New("record is locked")
	ErrNoScores      = errors.New("no submitted scores to compile")
	ErrStateConflict = errors.New("operation not allowed in current state")
	ErrNotFound      = errors.New("record not found")
	ErrForbidden     = errors.New("insufficient role")
)

// Kind strings are the machine-checkable identity of an error, stable across
// versions. They appear in batch failure items and error responses.
const (
	KindValidation    = "validation_error"
	KindLockedRecord  = "locked_record"
	KindNoScores      = "no_scores"
	KindStateConflict = "state_conflict"
	KindNotFound      = "not_found"
	KindForbidden     = "forbidden"
	KindInternal      = "internal"
)

func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrLockedRecord):
		return KindLockedRecord
	case errors.Is(err, ErrNoScores):
		return KindNoScores
	case errors.Is(err, ErrStateConflict):
		return KindStateConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	default:
		return KindInternal
	}
}
