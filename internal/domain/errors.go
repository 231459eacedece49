package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidBody = errors.New("message body must carry exactly one of text or attachment")

type ComposeCode string

const (
	ComposeEmptyBody        ComposeCode = "EMPTY_BODY"
	ComposeAttachmentFailed ComposeCode = "ATTACHMENT_FAILED"
	ComposeAppendFailed     ComposeCode = "APPEND_FAILED"
)

// ComposeError is returned by the composer for every user-initiated send that
// could not be completed.
type ComposeError struct {
	Code    ComposeCode
	Message string
	Cause   error
}

func (e *ComposeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ComposeError) Unwrap() error { return e.Cause }

// Is matches any ComposeError with the same code.
func (e *ComposeError) Is(target error) bool {
	var t *ComposeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrEmptyBody        = &ComposeError{Code: ComposeEmptyBody, Message: "message body is empty"}
	ErrAttachmentFailed = &ComposeError{Code: ComposeAttachmentFailed, Message: "attachment upload failed"}
	ErrAppendFailed     = &ComposeError{Code: ComposeAppendFailed, Message: "message could not be sent"}
)

func NewComposeError(code ComposeCode, message string, cause error) error {
	return &ComposeError{Code: code, Message: message, Cause: cause}
}

type StoreCode string

const (
	StoreUnknown          StoreCode = "UNKNOWN"
	StoreUnavailable      StoreCode = "UNAVAILABLE"
	StorePermissionDenied StoreCode = "PERMISSION_DENIED"
	StoreCanceled         StoreCode = "CANCELED"
	StoreInvalidRecord    StoreCode = "INVALID_RECORD"
)

// StoreError reports a RemoteMessageStore failure.
type StoreError struct {
	Op    string // "append" or "subscribe"
	Code  StoreCode
	Cause error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store %s (%s): %v", e.Op, e.Code, e.Cause)
	}
	return fmt.Sprintf("store %s (%s)", e.Op, e.Code)
}

func (e *StoreError) Unwrap() error { return e.Cause }
