package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrParse             ErrorType = "PARSE_ERROR"
	ErrDuplicateKey      ErrorType = "DUPLICATE_KEY"
	ErrOutOfOrderAdvance ErrorType = "OUT_OF_ORDER_ADVANCE"
	ErrStorageIO         ErrorType = "STORAGE_IO_ERROR"
	ErrNotFound          ErrorType = "NOT_FOUND"
	ErrInvalidRequest    ErrorType = "INVALID_REQUEST"
	ErrInternal          ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application. FileID and
// LineNo pin an error to a log position so ingestion can resume or be
// diagnosed without re-reading the whole file.
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	FileID     string    `json:"file_id,omitempty"`
	LineNo     int64     `json:"line_no,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Message
	if e.FileID != "" {
		msg = fmt.Sprintf("%s (file_id=%s line_no=%d)", msg, e.FileID, e.LineNo)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
	}
}

// At returns a copy of e annotated with a log position.
func (e *AppError) At(fileID string, lineNo int64) *AppError {
	clone := *e
	clone.FileID = fileID
	clone.LineNo = lineNo
	return &clone
}

func NewParseError(msg string, cause error) *AppError {
	return New(ErrParse, msg, cause)
}

func NewDuplicateKey(fileID string, lineNo int64) *AppError {
	return New(ErrDuplicateKey, "record already stored", nil).At(fileID, lineNo)
}

func NewOutOfOrderAdvance(fileID string, lineNo, watermark int64) *AppError {
	return New(ErrOutOfOrderAdvance,
		fmt.Sprintf("advance to %d not above watermark %d", lineNo, watermark), nil).At(fileID, lineNo)
}

func NewStorageIO(msg string, cause error) *AppError {
	return New(ErrStorageIO, msg, cause)
}

func NewNotFound(fileID string, lineNo int64) *AppError {
	return New(ErrNotFound, "record not found", nil).At(fileID, lineNo)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrParse, ErrInvalidRequest:
		return http.StatusBadRequest
	case ErrDuplicateKey:
		return http.StatusConflict
	case ErrNotFound:
		return http.StatusNotFound
	case ErrStorageIO:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
