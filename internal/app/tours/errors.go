package tours

import "net/http"

// Error is an application-layer error that can be mapped to an HTTP response.
// Field names the offending request field when applicable.
type Error struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func badRequest(message, field string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Message: message, Field: field}
}

func conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: "CONFLICT", Message: message}
}

func notFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: message}
}

func rateLimited(message string) *Error {
	return &Error{Status: http.StatusTooManyRequests, Code: "RATE_LIMIT", Message: message}
}
