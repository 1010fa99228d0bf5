package remote

import "errors"

// Kind classifies a remote-client failure so callers (the worker pipeline,
// mainly) can branch without string-matching.
type Kind string

const (
	KindInvalidUrl   Kind = "InvalidUrl"
	KindNotFound     Kind = "NotFound"
	KindUnauthorized Kind = "Unauthorized"
	KindRateLimited  Kind = "RateLimited"
	KindNetwork      Kind = "Network"
	KindDiskFull     Kind = "DiskFull"
	KindCancelled    Kind = "Cancelled"
	KindLayoutError  Kind = "LayoutError"
	KindInternal     Kind = "Internal"
)

// Error wraps a Kind with a human-readable, one-line message suitable for
// DownloadTask.ErrorMessage.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// NewError builds a typed Error for callers outside this package — the
// storage layout resolver, mainly, which needs to tag LayoutError failures
// the same way the client tags its own.
func NewError(kind Kind, msg string, cause error) *Error {
	return newErr(kind, msg, cause)
}

// KindOf extracts the Kind from err, defaulting to KindInternal for errors
// the client never tagged.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
