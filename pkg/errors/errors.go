package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Standard error types that can be used throughout the application
var (
	// Standard error sentinel values
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternalError      = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
	ErrUnavailable        = errors.New("service unavailable")
	ErrAlreadyExists      = errors.New("resource already exists")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrAborted            = errors.New("operation aborted")
	ErrCanceled           = errors.New("operation canceled")

	// Domain-specific error sentinel values
	ErrDuplicateItem         = errors.New("duplicate order item id")
	ErrInvalidTransition     = errors.New("invalid order state transition")
	ErrMetricsFinalized      = errors.New("conversation metrics already finalized")
	ErrMissingMetrics        = errors.New("order state missing conversation metrics")
	ErrSessionNotFound       = errors.New("ordering session not found")
	ErrSessionAlreadyExist   = errors.New("ordering session already exists")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrStorageFailure        = errors.New("storage operation failed")
	ErrTotalPriceNotAssigned = errors.New("total price not assigned before completion")
)

// Error represents a structured error with location and additional context
type Error struct {
	// original is the underlying error
	original error

	// message is the error message
	message string

	// fields contains contextual information
	fields map[string]interface{}

	// stackPC is the program counter for the error's creation
	stackPC uintptr

	// file and line record where the error was created
	file string
	line int

	// Code is an optional error code for categorization
	Code string
}

// New creates a new structured error with the given message
func New(message string, fields ...map[string]interface{}) *Error {
	pc, file, line, _ := runtime.Caller(1)

	var fieldMap map[string]interface{}
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	} else {
		fieldMap = make(map[string]interface{})
	}

	return &Error{
		original: errors.New(message),
		message:  message,
		fields:   fieldMap,
		stackPC:  pc,
		file:     file,
		line:     line,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, message string, fields ...map[string]interface{}) *Error {
	if err == nil {
		return nil
	}

	pc, file, line, _ := runtime.Caller(1)

	var fieldMap map[string]interface{}
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	} else {
		fieldMap = make(map[string]interface{})
	}

	return &Error{
		original: err,
		message:  message,
		fields:   fieldMap,
		stackPC:  pc,
		file:     file,
		line:     line,
	}
}

// WithField adds a single field to the error context
func (e *Error) WithField(key string, value interface{}) *Error {
	if e == nil {
		return nil
	}

	// Create a copy to avoid modifying the original
	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+1),
		stackPC:  e.stackPC,
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
	}

	for k, v := range e.fields {
		result.fields[k] = v
	}
	result.fields[key] = value

	return result
}

// WithFields adds multiple fields to the error context
func (e *Error) WithFields(fields map[string]interface{}) *Error {
	if e == nil {
		return nil
	}

	result := &Error{
		original: e.original,
		message:  e.message,
		fields:   make(map[string]interface{}, len(e.fields)+len(fields)),
		stackPC:  e.stackPC,
		file:     e.file,
		line:     e.line,
		Code:     e.Code,
	}

	for k, v := range e.fields {
		result.fields[k] = v
	}
	for k, v := range fields {
		result.fields[k] = v
	}

	return result
}

// WithCode adds an error code to the error
func (e *Error) WithCode(code string) *Error {
	if e == nil {
		return nil
	}

	return &Error{
		original: e.original,
		message:  e.message,
		fields:   e.fields,
		stackPC:  e.stackPC,
		file:     e.file,
		line:     e.line,
		Code:     code,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil || e.original == nil {
		return ""
	}

	if e.message == "" {
		return e.original.Error()
	}

	// Include both our message and the original error
	return fmt.Sprintf("%s: %v", e.message, e.original)
}

// Unwrap implements the errors.Unwrap interface
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.original
}

// Location returns the file:line where the error was created
func (e *Error) Location() string {
	if e == nil {
		return ""
	}

	parts := strings.Split(e.file, "/")
	filename := parts[len(parts)-1]

	return fmt.Sprintf("%s:%d", filename, e.line)
}

// GetFields returns the error's context fields
func (e *Error) GetFields() map[string]interface{} {
	if e == nil {
		return nil
	}
	return e.fields
}

// GetCode returns the error's code
func (e *Error) GetCode() string {
	if e == nil {
		return ""
	}
	return e.Code
}

// Is reports whether any error in err's tree matches target.
// Implements the errors.Is interface.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}

	if errors.Is(e.original, target) {
		return true
	}

	return e == target
}

// AsJSON returns the error in JSON-friendly map format
func (e *Error) AsJSON() map[string]interface{} {
	if e == nil {
		return nil
	}

	result := map[string]interface{}{
		"message":  e.Error(),
		"location": e.Location(),
	}

	if e.Code != "" {
		result["code"] = e.Code
	}

	if len(e.fields) > 0 {
		result["context"] = e.fields
	}

	return result
}

// NewNotFound creates a new ErrNotFound error with additional context
func NewNotFound(message string, fields ...map[string]interface{}) *Error {
	err := New(message, fields...)
	return &Error{
		original: ErrNotFound,
		message:  message,
		fields:   err.fields,
		stackPC:  err.stackPC,
		file:     err.file,
		line:     err.line,
		Code:     "NOT_FOUND",
	}
}

// NewInvalidInput creates a new ErrInvalidInput error with additional context
func NewInvalidInput(message string, fields ...map[string]interface{}) *Error {
	err := New(message, fields...)
	return &Error{
		original: ErrInvalidInput,
		message:  message,
		fields:   err.fields,
		stackPC:  err.stackPC,
		file:     err.file,
		line:     err.line,
		Code:     "INVALID_INPUT",
	}
}

// NewInternalError creates a new ErrInternalError with additional context
func NewInternalError(message string, fields ...map[string]interface{}) *Error {
	err := New(message, fields...)
	return &Error{
		original: ErrInternalError,
		message:  message,
		fields:   err.fields,
		stackPC:  err.stackPC,
		file:     err.file,
		line:     err.line,
		Code:     "INTERNAL_ERROR",
	}
}

// NewDuplicateItem creates a new ErrDuplicateItem with additional context
func NewDuplicateItem(orderID string, fields ...map[string]interface{}) *Error {
	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	}
	fieldMap["order_id"] = orderID

	pc, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrDuplicateItem,
		message:  fmt.Sprintf("duplicate order item id: %s", orderID),
		fields:   fieldMap,
		stackPC:  pc,
		file:     file,
		line:     line,
		Code:     "DUPLICATE_ITEM",
	}
}

// NewInvalidTransition creates a new ErrInvalidTransition with additional context
func NewInvalidTransition(from, to string, fields ...map[string]interface{}) *Error {
	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	}
	fieldMap["from"] = from
	fieldMap["to"] = to

	pc, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrInvalidTransition,
		message:  fmt.Sprintf("invalid order state transition: %s -> %s", from, to),
		fields:   fieldMap,
		stackPC:  pc,
		file:     file,
		line:     line,
		Code:     "INVALID_TRANSITION",
	}
}

// NewConversationNotFound creates a new ErrConversationNotFound with additional context
func NewConversationNotFound(sessionID string, fields ...map[string]interface{}) *Error {
	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	}
	fieldMap["session_id"] = sessionID

	pc, file, line, _ := runtime.Caller(1)

	return &Error{
		original: ErrConversationNotFound,
		message:  fmt.Sprintf("conversation not found for session: %s", sessionID),
		fields:   fieldMap,
		stackPC:  pc,
		file:     file,
		line:     line,
		Code:     "CONVERSATION_NOT_FOUND",
	}
}

// NewStorageFailure creates a new ErrStorageFailure wrapping the underlying cause
func NewStorageFailure(cause error, fields ...map[string]interface{}) *Error {
	fieldMap := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		fieldMap = fields[0]
	}

	pc, file, line, _ := runtime.Caller(1)

	message := "storage operation failed"
	if cause != nil {
		message = fmt.Sprintf("storage operation failed: %v", cause)
	}

	return &Error{
		original: ErrStorageFailure,
		message:  message,
		fields:   fieldMap,
		stackPC:  pc,
		file:     file,
		line:     line,
		Code:     "STORAGE_FAILURE",
	}
}

// IsErrorType checks if an error is of a specific error type
func IsErrorType(err, target error) bool {
	return errors.Is(err, target)
}

// GetErrorCode extracts the error code from an error if it's a structured error
func GetErrorCode(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetCode()
	}
	return ""
}

// GetErrorFields extracts fields from an error if it's a structured error
func GetErrorFields(err error) map[string]interface{} {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.GetFields()
	}
	return nil
}

// GetErrorLocation extracts location from an error if it's a structured error
func GetErrorLocation(err error) string {
	var serr *Error
	if errors.As(err, &serr) {
		return serr.Location()
	}
	return ""
}
