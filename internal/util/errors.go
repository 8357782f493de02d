package util

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindAccessDenied ErrorKind = "access_denied"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal"
)

// 机器可读的错误类型，前端据此渲染提示
const (
	ErrTypeValidation         = "VALIDATION_ERROR"
	ErrTypeSlotIDRequired     = "SLOT_ID_REQUIRED"
	ErrTypeInvalidTimeFormat  = "INVALID_TIME_FORMAT"
	ErrTypeInvalidSlotWindow  = "INVALID_SLOT_WINDOW"
	ErrTypeInvalidDate        = "INVALID_DATE"
	ErrTypeExamNotFound       = "EXAM_NOT_FOUND"
	ErrTypeSlotNotFound       = "SLOT_NOT_FOUND"
	ErrTypeAttemptNotFound    = "ATTEMPT_NOT_FOUND"
	ErrTypeNotRegistered      = "NOT_REGISTERED"
	ErrTypePaymentRequired    = "PAYMENT_REQUIRED"
	ErrTypeExamNotStarted     = "EXAM_NOT_STARTED"
	ErrTypeExamEnded          = "EXAM_ENDED"
	ErrTypeRegistrationClosed = "REGISTRATION_CLOSED"
	ErrTypeMaxAttemptsReached = "MAX_ATTEMPTS_REACHED"
	ErrTypeExamInactive       = "EXAM_INACTIVE"
	ErrTypeSlotInactive       = "SLOT_INACTIVE"
	ErrTypeSlotFull           = "SLOT_FULL"
	ErrTypeAlreadyRegistered  = "ALREADY_REGISTERED"
	ErrTypeAttemptNumberTaken = "ATTEMPT_NUMBER_TAKEN"
	ErrTypeAttemptFinished    = "ATTEMPT_ALREADY_FINISHED"
	ErrTypeAttemptInProgress  = "ATTEMPT_IN_PROGRESS"
	ErrTypeInternal           = "INTERNAL_ERROR"
)

// AppError 业务错误，Kind 决定 HTTP 状态码，Details 随响应返回
type AppError struct {
	Kind      ErrorKind
	ErrorType string
	Message   string
	Details   map[string]interface{}
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.ErrorType, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.ErrorType, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 按 Kind + ErrorType 匹配，便于 errors.Is(err, util.ErrExamNotFound)
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.ErrorType == e.ErrorType
}

// WithDetail 返回附带上下文字段的副本
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAccessDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func NewValidationError(errorType, message string) *AppError {
	return &AppError{Kind: KindValidation, ErrorType: errorType, Message: message}
}

func NewAccessDenied(errorType, message string) *AppError {
	return &AppError{Kind: KindAccessDenied, ErrorType: errorType, Message: message}
}

func NewNotFound(errorType, message string) *AppError {
	return &AppError{Kind: KindNotFound, ErrorType: errorType, Message: message}
}

func NewConflict(errorType, message string) *AppError {
	return &AppError{Kind: KindConflict, ErrorType: errorType, Message: message}
}

func NewInternal(err error) *AppError {
	return &AppError{Kind: KindInternal, ErrorType: ErrTypeInternal, Message: "internal error", Err: err}
}

// IsKind 判断错误链中是否存在指定 Kind 的 AppError
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// ErrorTypeOf 返回错误类型，非 AppError 视为内部错误
func ErrorTypeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ErrorType
	}
	return ErrTypeInternal
}

var (
	ErrExamNotFound        = NewNotFound(ErrTypeExamNotFound, "exam not found")
	ErrSlotNotFound        = NewNotFound(ErrTypeSlotNotFound, "slot not found")
	ErrAttemptNotFound     = NewNotFound(ErrTypeAttemptNotFound, "no in-progress attempt found")
	ErrNotRegistered       = NewAccessDenied(ErrTypeNotRegistered, "no active registration for this exam")
	ErrPaymentRequired     = NewAccessDenied(ErrTypePaymentRequired, "payment required to access this exam")
	ErrExamNotStarted      = NewAccessDenied(ErrTypeExamNotStarted, "exam has not started yet")
	ErrExamEnded           = NewAccessDenied(ErrTypeExamEnded, "exam window has ended")
	ErrRegistrationClosed  = NewAccessDenied(ErrTypeRegistrationClosed, "registration for this slot is closed")
	ErrMaxAttemptsReached  = NewAccessDenied(ErrTypeMaxAttemptsReached, "maximum attempts reached")
	ErrExamInactive        = NewAccessDenied(ErrTypeExamInactive, "exam is no longer active")
	ErrSlotInactive        = NewAccessDenied(ErrTypeSlotInactive, "slot is no longer active")
	ErrSlotFull            = NewValidationError(ErrTypeSlotFull, "slot is full")
	ErrSlotIDRequired      = NewValidationError(ErrTypeSlotIDRequired, "slotId is required")
	ErrAlreadyRegistered   = NewConflict(ErrTypeAlreadyRegistered, "already registered for this exam")
	ErrAttemptNumberTaken  = NewConflict(ErrTypeAttemptNumberTaken, "attempt number already used")
	ErrAttemptFinished     = NewConflict(ErrTypeAttemptFinished, "attempt is already finished")
	ErrAttemptStillRunning = NewValidationError(ErrTypeAttemptInProgress, "latest attempt is still in progress")
)
