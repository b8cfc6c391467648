// Package apperr provides the standardized error taxonomy for the snapper
// kernel.
//
// Every error the core originates itself is an *AppError carrying a
// machine-readable Code from the closed taxonomy in spec §7, a
// human-readable Message, and optional Details for debugging. Errors
// returned by an app's loader callback, and filesystem errors from the
// State Store, are passed through unwrapped. There is no
// HTTP status mapping here — this kernel owns no transport (see
// DESIGN.md, Dropped teacher dependencies) — callers that do sit behind
// a transport are expected to map Code to their own wire format themselves.
//
// Usage patterns:
//
//	return apperr.PermissionDenied("storage:write")
//	return apperr.InvalidTransition("active", "loading")
//	return apperr.Wrap(apperr.CodeFactoryFailure, "factory panicked", err)
package apperr

import "fmt"

// AppError is a structured, machine-readable application error.
type AppError struct {
	// Code is the machine-readable taxonomy entry (e.g. "INVALID_MANIFEST").
	Code string `json:"code"`

	// Message is human-readable and safe to surface to an app author.
	Message string `json:"message"`

	// Details carries optional extra context (a wrapped error's text, the
	// offending field name, ...). Omitted from Error() when empty.
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error code taxonomy, closed per spec §7.
const (
	CodeInvalidManifest       = "INVALID_MANIFEST"
	CodeDuplicateID           = "DUPLICATE_ID"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodePreconditionViolated  = "PRECONDITION_VIOLATED"
	CodePermissionDenied      = "PERMISSION_DENIED"
	CodeFactoryFailure        = "FACTORY_FAILURE"
	CodeCallbackFailure       = "CALLBACK_FAILURE"
	CodeUnknownMethod         = "UNKNOWN_METHOD"
	CodeRequestTimeout        = "REQUEST_TIMEOUT"
	CodeCorruptEntry          = "CORRUPT_ENTRY"
	CodeEncryptionUnavailable = "ENCRYPTION_UNAVAILABLE"
)

// New creates an AppError with no details.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches an underlying error's text as Details.
func Wrap(code, message string, err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &AppError{Code: code, Message: message, Details: details}
}

// InvalidManifest reports a specific manifest validation failure (spec §4.1).
func InvalidManifest(reason string) *AppError {
	return New(CodeInvalidManifest, reason)
}

// DuplicateID reports that an id is already catalogued.
func DuplicateID(id string) *AppError {
	return New(CodeDuplicateID, fmt.Sprintf("app id %q is already registered", id))
}

// InvalidTransition reports a rejected lifecycle transition (spec §4.2).
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %q to %q", from, to),
		Details: fmt.Sprintf("from=%s to=%s", from, to),
	}
}

// PreconditionViolated reports an operation invoked while its precondition
// state does not hold.
func PreconditionViolated(operation, state string) *AppError {
	return &AppError{
		Code:    CodePreconditionViolated,
		Message: fmt.Sprintf("%s is not valid in state %q", operation, state),
		Details: fmt.Sprintf("operation=%s state=%s", operation, state),
	}
}

// PermissionDenied reports a capability-gated call made without the tag.
func PermissionDenied(tag string) *AppError {
	return &AppError{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("missing permission %q", tag),
		Details: tag,
	}
}

// FactoryFailure reports a SnApp factory function that returned an error.
func FactoryFailure(cause error) *AppError {
	return Wrap(CodeFactoryFailure, "app factory failed", cause)
}

// CallbackFailure reports a lifecycle instance callback that returned an
// error.
func CallbackFailure(callback string, cause error) *AppError {
	return &AppError{
		Code:    CodeCallbackFailure,
		Message: fmt.Sprintf("callback %q failed", callback),
		Details: errString(cause),
	}
}

// UnknownMethod reports an RPC request to a method with no registered
// handler.
func UnknownMethod(appID, method string) *AppError {
	return &AppError{
		Code:    CodeUnknownMethod,
		Message: fmt.Sprintf("no method %q registered for app %q", method, appID),
	}
}

// RequestTimeout reports an RPC request that was not answered in time.
func RequestTimeout(appID, method string) *AppError {
	return &AppError{
		Code:    CodeRequestTimeout,
		Message: fmt.Sprintf("request to %s:%s timed out", appID, method),
	}
}

// CorruptEntry reports a state file that failed to parse; callers treat
// this as a cache miss, never as a hard failure (spec §7).
func CorruptEntry(path string, cause error) *AppError {
	return Wrap(CodeCorruptEntry, fmt.Sprintf("corrupt state entry at %s", path), cause)
}

// EncryptionUnavailable reports that encrypted:true was requested with no
// crypto hook configured; honored silently per spec §7, surfaced here only
// for logging.
func EncryptionUnavailable() *AppError {
	return New(CodeEncryptionUnavailable, "no encryption hook configured; writing entry in plaintext")
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
