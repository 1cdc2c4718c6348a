package models

import (
	"errors"
	"fmt"
)

// ErrorKind - машинно-читаемая категория ошибки.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindValidation   ErrorKind = "validation"
	KindConflict     ErrorKind = "conflict"
	KindLimitReached ErrorKind = "limit_reached"
	KindInternal     ErrorKind = "internal"
)

// Коды ошибок, возвращаемые клиенту в поле code.
const (
	ErrCodeBadRequest            = "bad_request"
	ErrCodeInternal              = "internal_error"
	ErrCodeStoryNotFound         = "story_not_found"
	ErrCodePageNotFound          = "page_not_found"
	ErrCodeProposalNotFound      = "proposal_not_found"
	ErrCodeInvalidPageNumber     = "invalid_page_number"
	ErrCodeInvalidInput          = "invalid_input"
	ErrCodeProposalTooShort      = "proposal_too_short"
	ErrCodeProposalTooLong       = "proposal_too_long"
	ErrCodeContentTooLong        = "content_too_long"
	ErrCodePageLocked            = "page_locked"
	ErrCodeAlreadyAccepted       = "already_accepted"
	ErrCodeAlreadyRejected       = "already_rejected"
	ErrCodeAcceptLimitReached    = "accept_limit_reached"
	ErrCodeAcceptThresholdNotMet = "accept_threshold_not_met"
	ErrCodeContentTooShort       = "content_too_short"
	ErrCodeStoryBusy             = "story_busy"
	ErrCodeRateLimited           = "rate_limited"
)

// Error - ошибка предметной области с категорией и кодом.
// errors.Is сравнивает ошибки по коду, поэтому копия с другим
// сообщением совпадает с исходной sentinel-ошибкой.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf возвращает копию ошибки с отформатированным сообщением.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrStoryNotFound    = newError(KindNotFound, ErrCodeStoryNotFound, "Story not found")
	ErrPageNotFound     = newError(KindNotFound, ErrCodePageNotFound, "Page not found")
	ErrProposalNotFound = newError(KindNotFound, ErrCodeProposalNotFound, "Proposal not found")

	ErrInvalidPageNumber = newError(KindValidation, ErrCodeInvalidPageNumber, "Invalid page number")
	ErrInvalidInput      = newError(KindValidation, ErrCodeInvalidInput, "Invalid input data")
	ErrProposalTooShort  = newError(KindValidation, ErrCodeProposalTooShort, "Proposal is too short")
	ErrProposalTooLong   = newError(KindValidation, ErrCodeProposalTooLong, "Proposal is too long")
	ErrContentTooLong    = newError(KindValidation, ErrCodeContentTooLong, "Content exceeds max length")

	ErrPageLocked      = newError(KindConflict, ErrCodePageLocked, "Page locked")
	ErrAlreadyAccepted = newError(KindConflict, ErrCodeAlreadyAccepted, "Already accepted")
	ErrAlreadyRejected = newError(KindConflict, ErrCodeAlreadyRejected, "Already rejected")
	ErrStoryBusy       = newError(KindConflict, ErrCodeStoryBusy, "Story is busy, try again")

	ErrAcceptLimitReached    = newError(KindLimitReached, ErrCodeAcceptLimitReached, "Page already reached accepted limit")
	ErrAcceptThresholdNotMet = newError(KindLimitReached, ErrCodeAcceptThresholdNotMet, "Not enough accepted proposals to lock this page")
	ErrContentTooShort       = newError(KindLimitReached, ErrCodeContentTooShort, "Page content is too short to lock")
)

// KindOf возвращает категорию ошибки. Ошибки без категории считаются внутренними.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrorResponse - стандартное тело ответа об ошибке.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
