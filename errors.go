package lifetrack

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode uint16

const (
	ErrCodeUnknown ErrorCode = iota
	ErrCodeDuplicateRegistration
	ErrCodeClassNotFound
	ErrCodeClassConflict
	ErrCodeInstanceNotFound
	ErrCodeInstanceClosed
	ErrCodeInvalidInstance
	ErrCodeInitFailed
	ErrCodeCleanupFailed
)

var codeNames = map[ErrorCode]string{
	ErrCodeUnknown:               "UNKNOWN",
	ErrCodeDuplicateRegistration: "DUPLICATE_REGISTRATION",
	ErrCodeClassNotFound:         "CLASS_NOT_FOUND",
	ErrCodeClassConflict:         "CLASS_CONFLICT",
	ErrCodeInstanceNotFound:      "INSTANCE_NOT_FOUND",
	ErrCodeInstanceClosed:        "INSTANCE_CLOSED",
	ErrCodeInvalidInstance:       "INVALID_INSTANCE",
	ErrCodeInitFailed:            "INIT_FAILED",
	ErrCodeCleanupFailed:         "CLEANUP_FAILED",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", c)
}

type Error struct {
	Code    ErrorCode
	Message string
	Class   string
	ID      uint64
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s]", e.Code))

	switch {
	case e.Class != "" && e.ID != 0:
		b.WriteString(fmt.Sprintf(" instance=%s#%d:", e.Class, e.ID))
	case e.Class != "":
		b.WriteString(fmt.Sprintf(" class=%q:", e.Class))
	}

	b.WriteString(" ")
	b.WriteString(e.Message)

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func (e *Error) WithClass(class string) *Error {
	e.Class = class
	return e
}

func (e *Error) WithID(id uint64) *Error {
	e.ID = id
	return e
}

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func errDuplicateRegistration(class string, cause error) *Error {
	return newError(
		ErrCodeDuplicateRegistration,
		"instance is already registered",
		cause,
	).WithClass(class)
}

func errClassNotFound(class string) *Error {
	return newError(
		ErrCodeClassNotFound,
		"no class registered under this name",
		nil,
	).WithClass(class)
}

func errClassConflict(class, existing, requested string) *Error {
	return newError(
		ErrCodeClassConflict,
		fmt.Sprintf("class name bound to %s, cannot track %s", existing, requested),
		nil,
	).WithClass(class)
}

func errInstanceNotFound(class string, id uint64, cause error) *Error {
	return newError(
		ErrCodeInstanceNotFound,
		"no record for this identifier",
		cause,
	).WithClass(class).WithID(id)
}

func errInstanceClosed(class string, id uint64) *Error {
	return newError(
		ErrCodeInstanceClosed,
		"instance is closed",
		nil,
	).WithClass(class).WithID(id)
}

func errInvalidInstance(class, reason string) *Error {
	return newError(ErrCodeInvalidInstance, reason, nil).WithClass(class)
}

func errInitFailed(class string, id uint64, cause error) *Error {
	return newError(
		ErrCodeInitFailed,
		"initialization failed, instance closed",
		cause,
	).WithClass(class).WithID(id)
}

func errCleanupFailed(class string, id uint64, cause error) *Error {
	return newError(
		ErrCodeCleanupFailed,
		"cleanup failed, instance retired",
		cause,
	).WithClass(class).WithID(id)
}

func IsDuplicateRegistration(err error) bool {
	return hasCode(err, ErrCodeDuplicateRegistration)
}

func IsClassNotFound(err error) bool {
	return hasCode(err, ErrCodeClassNotFound)
}

func IsClassConflict(err error) bool {
	return hasCode(err, ErrCodeClassConflict)
}

func IsInstanceNotFound(err error) bool {
	return hasCode(err, ErrCodeInstanceNotFound)
}

func IsInstanceClosed(err error) bool {
	return hasCode(err, ErrCodeInstanceClosed)
}

func IsInvalidInstance(err error) bool {
	return hasCode(err, ErrCodeInvalidInstance)
}

func IsInitFailed(err error) bool {
	return hasCode(err, ErrCodeInitFailed)
}

func IsCleanupFailed(err error) bool {
	return hasCode(err, ErrCodeCleanupFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
