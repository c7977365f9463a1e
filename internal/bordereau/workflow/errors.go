package workflow

import (
	"errors"
	"fmt"
	"strings"

	"wastetrack/internal/bordereau/models"
)

// ErrorKind discriminates workflow failures for callers. All kinds are
// recoverable by the caller; none is retried internally.
type ErrorKind string

const (
	KindInvalidTransition   ErrorKind = "INVALID_TRANSITION"
	KindInvalidForm         ErrorKind = "INVALID_FORM"
	KindMissingSignature    ErrorKind = "MISSING_SIGNATURE"
	KindInvalidSecurityCode ErrorKind = "INVALID_SECURITY_CODE"
	KindAppendix            ErrorKind = "APPENDIX_ERROR"
	KindSegmentsToTakeOver  ErrorKind = "HAS_SEGMENTS_TO_TAKE_OVER"
)

// Error is a workflow rejection. The triggering call is terminal: nothing was
// persisted and the caller sees the document unchanged.
type Error struct {
	Kind    ErrorKind
	Message string
	// Fields lists every failing field for KindInvalidForm.
	Fields []string
	Cause  error
}

func (e *Error) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, strings.Join(e.Fields, ", "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewInvalidTransition reports an event that is not declared for the current
// status.
func NewInvalidTransition(status models.Status, event Event) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("event %s is not allowed from status %s", event, status),
	}
}

// NewInvalidForm reports a pre-transition schema validation failure with every
// failing field.
func NewInvalidForm(fields []string) *Error {
	return &Error{
		Kind:    KindInvalidForm,
		Message: "required fields are missing or invalid",
		Fields:  fields,
	}
}

// NewMissingSignature reports a sign-off attempted without a signature author.
func NewMissingSignature() *Error {
	return &Error{Kind: KindMissingSignature, Message: "a signature author is required"}
}

// NewInvalidSecurityCode reports a failed security-code verification.
func NewInvalidSecurityCode() *Error {
	return &Error{Kind: KindInvalidSecurityCode, Message: "the security code does not match"}
}

// NewSegmentsToTakeOver blocks reception while a transport leg awaits pickup.
func NewSegmentsToTakeOver() *Error {
	return &Error{
		Kind:    KindSegmentsToTakeOver,
		Message: "all transport segments must be taken over before reception can be recorded",
	}
}

// NewAppendixError surfaces a failed propagation to appendix children with its
// originating cause.
func NewAppendixError(cause error) *Error {
	return &Error{Kind: KindAppendix, Message: "propagation to appendix forms failed", Cause: cause}
}

// KindOf extracts the workflow error kind, or "" for non-workflow errors.
func KindOf(err error) ErrorKind {
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}
