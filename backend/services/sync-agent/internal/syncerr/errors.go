// Package syncerr holds the error taxonomy returned by the synchronizing repositories.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind labels used in metrics and HTTP mapping.
const (
	KindNetwork    = "network"
	KindRemote     = "remote"
	KindNotFound   = "not_found"
	KindValidation = "validation"
	KindDecode     = "decode"
	KindDenied     = "denied"
	KindInternal   = "internal"
)

// NetworkError is a transport-level failure (refused, reset, timeout).
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is a non-2xx answer; Body is kept raw for the structured error decoder.
type RemoteError struct {
	Code int
	Body []byte
}

func (e *RemoteError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("remote status %d", e.Code)
	}
	return fmt.Sprintf("remote status %d: %s", e.Code, e.Body)
}

// NotFoundError is a successful call that carried no entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Entity)
	}
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// ValidationError is a precondition detected locally before any call was attempted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// DeniedError is a well-formed remote answer refusing the request, such as a session
// validation the booking service judged invalid.
type DeniedError struct {
	Op     string
	Reason string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s denied: %s", e.Op, e.Reason)
}

// DecodeError is a remote payload the translator could not map.
type DecodeError struct {
	Entity string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Entity, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrMissingIdentity is the ValidationError reason used when no authenticated user is known.
var ErrMissingIdentity = &ValidationError{Field: "identity", Reason: "no authenticated user"}

// Kind classifies err into one of the Kind* labels.
func Kind(err error) string {
	var (
		netErr      *NetworkError
		remoteErr   *RemoteError
		notFound    *NotFoundError
		validation  *ValidationError
		decodeError *DecodeError
		denied      *DeniedError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &denied):
		return KindDenied
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &remoteErr):
		return KindRemote
	case errors.As(err, &decodeError):
		return KindDecode
	case errors.As(err, &netErr):
		return KindNetwork
	default:
		return KindInternal
	}
}

// IsMissingIdentity reports whether err is the missing identity precondition.
func IsMissingIdentity(err error) bool {
	var validation *ValidationError
	return errors.As(err, &validation) && validation.Field == ErrMissingIdentity.Field
}
