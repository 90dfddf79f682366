// Package clinicerr defines the domain error taxonomy surfaced by the API:
// validation (422), not found (404), conflict (409), forbidden (403).
package clinicerr

import (
	"errors"
	"net/http"
)

// Kind classifies a domain error for HTTP mapping.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindForbidden  Kind = "forbidden"
)

// Error carries a caller-facing message plus optional per-field detail,
// mirroring the API envelope's errors object.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
}

func (e *Error) Error() string {
	return e.Message
}

// WithField attaches a field-level detail message and returns the error.
func (e *Error) WithField(field, detail string) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], detail)
	return e
}

// Validation reports malformed or missing input.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound reports an absent referenced entity.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a state collision such as double-booking or a
// duplicate waiting entry.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// Forbidden reports a role or ownership violation.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// As unwraps err into a *Error if one is in the chain.
func As(err error) (*Error, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// Status maps an error to its HTTP status code. Unclassified errors are
// internal server errors.
func Status(err error) int {
	domainErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch domainErr.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
