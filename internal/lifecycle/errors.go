package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected lifecycle operation. Business-rule kinds are
// detected before any mutation; KindStorage means the transaction itself
// failed and was rolled back.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindUnauthorized
	KindInvalidState
	KindSequenceViolation
	KindDuplicate
	KindValidation
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidState:
		return "invalid_state"
	case KindSequenceViolation:
		return "sequence_violation"
	case KindDuplicate:
		return "duplicate_operation"
	case KindValidation:
		return "validation_error"
	case KindStorage:
		return "storage_failure"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or KindUnknown for errors that
// did not originate in the lifecycle engine.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

func notFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func unauthorizedf(format string, args ...interface{}) error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

func invalidStatef(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

func sequenceViolationf(format string, args ...interface{}) error {
	return &Error{Kind: KindSequenceViolation, Message: fmt.Sprintf(format, args...)}
}

func duplicatef(format string, args ...interface{}) error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf(format, args...)}
}

func validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func storageErr(err error) error {
	return &Error{Kind: KindStorage, Message: "storage failure", Err: err}
}

// asDomainErr passes engine errors through untouched and wraps anything the
// store surfaced directly as a storage failure.
func asDomainErr(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	return storageErr(err)
}
