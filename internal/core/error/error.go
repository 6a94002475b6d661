package errx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies failures so callers can branch without string matching.
type Kind string

const (
	KindNoJSONFound       Kind = "NoJSONFound"
	KindJSONSyntax        Kind = "JSONSyntaxError"
	KindSchemaViolation   Kind = "SchemaViolation"
	KindUpstreamHTTP      Kind = "UpstreamHTTPError"
	KindMissingIdentifier Kind = "MissingIdentifier"
	KindNetwork           Kind = "NetworkError"
	KindInvalidRequest    Kind = "InvalidRequest"
	KindInternal          Kind = "Internal"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// NoJSONFoundMessage is returned when agent text carries no JSON object.
	NoJSONFoundMessage = "no JSON object found in content"
	// MissingIdentifierMessage is returned when a created resource has no id.
	MissingIdentifierMessage = "downstream response did not contain a typebot id"
)

// AppError wraps an underlying error with a kind, an HTTP status and a safe message.
// Message never contains credentials; it is rendered to API clients verbatim.
type AppError struct {
	Kind    Kind
	Err     error
	Status  int
	Message string
	// Details carries field-level messages for schema violations.
	Details []string
	// UpstreamStatus and UpstreamBody are set for UpstreamHTTPError.
	UpstreamStatus int
	UpstreamBody   string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := e.Message
	if len(e.Details) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Details, "; "))
	}
	if e.Err == nil {
		return msg
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches the underlying error, or is an
// AppError of the same kind.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return t.Kind != "" && t.Kind == e.Kind
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// New creates a new AppError with the provided information.
func New(kind Kind, err error, status int, message string) *AppError {
	return &AppError{
		Kind:    kind,
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Sentinels usable with errors.Is, e.g. errors.Is(err, errx.ErrNoJSONFound).
var (
	ErrNoJSONFound       = &AppError{Kind: KindNoJSONFound}
	ErrJSONSyntax        = &AppError{Kind: KindJSONSyntax}
	ErrSchemaViolation   = &AppError{Kind: KindSchemaViolation}
	ErrUpstreamHTTP      = &AppError{Kind: KindUpstreamHTTP}
	ErrMissingIdentifier = &AppError{Kind: KindMissingIdentifier}
	ErrNetwork           = &AppError{Kind: KindNetwork}
)

// NoJSONFound reports text without any recoverable JSON object.
func NoJSONFound() *AppError {
	return New(KindNoJSONFound, nil, http.StatusBadRequest, NoJSONFoundMessage)
}

// JSONSyntax wraps a decoder failure; the parser message is kept.
func JSONSyntax(err error) *AppError {
	msg := "invalid JSON"
	if err != nil {
		msg = "invalid JSON: " + err.Error()
	}
	return New(KindJSONSyntax, err, http.StatusBadRequest, msg)
}

// SchemaViolation carries the ordered field-level messages of an invalid document.
func SchemaViolation(details []string) *AppError {
	e := New(KindSchemaViolation, nil, http.StatusUnprocessableEntity, "flow document is invalid")
	e.Details = append([]string(nil), details...)
	return e
}

// Upstream reports a non-2xx answer from an external API. message is what the
// caller should display; body is kept for diagnostics.
func Upstream(status int, message, body string) *AppError {
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("upstream returned status %d", status)
	}
	e := New(KindUpstreamHTTP, nil, http.StatusBadGateway, message)
	e.UpstreamStatus = status
	e.UpstreamBody = body
	return e
}

// MissingIdentifier reports a 2xx creation response without an id.
func MissingIdentifier(body string) *AppError {
	e := New(KindMissingIdentifier, nil, http.StatusBadGateway, MissingIdentifierMessage)
	e.UpstreamBody = body
	return e
}

// Network wraps a transport-level failure against the named service.
func Network(service string, err error) *AppError {
	return New(KindNetwork, err, http.StatusBadGateway, service+" is unreachable")
}

// InvalidRequest reports a malformed request from an API client.
func InvalidRequest(message string) *AppError {
	return New(KindInvalidRequest, nil, http.StatusBadRequest, message)
}

// Internal wraps an unexpected failure behind the generic system message.
func Internal(err error) *AppError {
	return New(KindInternal, err, http.StatusInternalServerError, SystemErrorMessage)
}

// KindOf returns the kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

// StatusOf returns the HTTP status carried by err, or 500 for unknown errors.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// From returns err as an AppError, wrapping unknown errors as Internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
