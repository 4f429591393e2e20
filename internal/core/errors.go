// Package core provides the shared types and error taxonomy for the Gemini client.
package core

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrorType represents the category of error that occurred
type ErrorType string

const (
	// ErrorTypeFileNotFound indicates the local file does not exist
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	// ErrorTypeFileUnreadable indicates the local file size or MIME type could not be determined
	ErrorTypeFileUnreadable ErrorType = "file_unreadable"
	// ErrorTypeSessionInitiation indicates the resumable session could not be started
	ErrorTypeSessionInitiation ErrorType = "session_initiation_failed"
	// ErrorTypeChunkRead indicates a local read error while streaming the file
	ErrorTypeChunkRead ErrorType = "chunk_read_failed"
	// ErrorTypeChunkUpload indicates the server rejected or never acknowledged a chunk
	ErrorTypeChunkUpload ErrorType = "chunk_upload_failed"
	// ErrorTypeOffsetOverflow indicates an upload session was advanced past its declared size
	ErrorTypeOffsetOverflow ErrorType = "offset_overflow"
	// ErrorTypeTransport indicates the request never produced an HTTP response
	ErrorTypeTransport ErrorType = "transport_failure"
	// ErrorTypeAPI indicates the API answered with a non-success status
	ErrorTypeAPI ErrorType = "api_error"
	// ErrorTypeInvalidRequest indicates the caller supplied unusable arguments
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
)

// ByteRange is a half-open byte interval [Start, End) of a source file.
type ByteRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Error is the base error type for all client errors
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	// StatusCode is the HTTP status returned by the API, 0 when no response was received
	StatusCode int `json:"status_code,omitempty"`
	// APIStatus is the canonical status string from the API error envelope (e.g. "NOT_FOUND")
	APIStatus string `json:"api_status,omitempty"`
	// Body is the raw response body, kept verbatim for diagnosis
	Body string `json:"body,omitempty"`
	// Range is set for chunk failures
	Range *ByteRange `json:"range,omitempty"`
	// Original error for debugging
	Err error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Range != nil {
		b.WriteString(" range=")
		b.WriteString(e.Range.String())
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err, or any error it wraps, is a *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == t
}

// StatusCodeOf returns the HTTP status carried by err, or 0.
func StatusCodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// NewFileNotFoundError creates an error for a missing local file
func NewFileNotFoundError(path string, err error) *Error {
	return &Error{
		Type:    ErrorTypeFileNotFound,
		Message: "file does not exist: " + path,
		Err:     err,
	}
}

// NewFileUnreadableError creates an error for a file whose size or MIME type cannot be determined
func NewFileUnreadableError(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeFileUnreadable,
		Message: message,
		Err:     err,
	}
}

// NewSessionInitiationError creates an error for a failed upload initiation
func NewSessionInitiationError(message string, statusCode int, body []byte, err error) *Error {
	return &Error{
		Type:       ErrorTypeSessionInitiation,
		Message:    message,
		StatusCode: statusCode,
		APIStatus:  apiStatus(body),
		Body:       string(body),
		Err:        err,
	}
}

// NewChunkReadError creates an error for a local read failure mid-stream
func NewChunkReadError(offset int64, err error) *Error {
	return &Error{
		Type:    ErrorTypeChunkRead,
		Message: fmt.Sprintf("failed to read chunk at offset %d", offset),
		Err:     err,
	}
}

// NewChunkUploadError creates an error for a chunk the server did not accept
func NewChunkUploadError(r ByteRange, statusCode int, body []byte, err error) *Error {
	msg := "chunk upload failed"
	if m := apiMessage(body); m != "" {
		msg += ": " + m
	}
	return &Error{
		Type:       ErrorTypeChunkUpload,
		Message:    msg,
		StatusCode: statusCode,
		APIStatus:  apiStatus(body),
		Body:       string(body),
		Range:      &r,
		Err:        err,
	}
}

// NewOffsetOverflowError creates an error for a session advanced past its total size
func NewOffsetOverflowError(sent, n, total int64) *Error {
	return &Error{
		Type:    ErrorTypeOffsetOverflow,
		Message: fmt.Sprintf("advancing %d bytes from offset %d exceeds total size %d", n, sent, total),
	}
}

// NewTransportError creates an error for a request that produced no response
func NewTransportError(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeTransport,
		Message: message,
		Err:     err,
	}
}

// NewInvalidRequestError creates an error for unusable caller arguments
func NewInvalidRequestError(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeInvalidRequest,
		Message: message,
		Err:     err,
	}
}

// ParseAPIError builds an api_error from a non-success response.
// The body is kept verbatim; the Google error envelope
// {"error":{"code":..,"message":..,"status":..}} is used for the message when present.
func ParseAPIError(statusCode int, body []byte) *Error {
	message := apiMessage(body)
	if message == "" {
		message = http.StatusText(statusCode)
	}
	if message == "" {
		message = "unexpected response"
	}
	return &Error{
		Type:       ErrorTypeAPI,
		Message:    message,
		StatusCode: statusCode,
		APIStatus:  apiStatus(body),
		Body:       string(body),
	}
}

func apiMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	return gjson.GetBytes(body, "error.message").String()
}

func apiStatus(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return ""
	}
	return gjson.GetBytes(body, "error.status").String()
}
