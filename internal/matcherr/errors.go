// Package matcherr defines the error taxonomy shared by every component:
// per-image fetch/encode failures, per-cache failures, per-query
// failures, and the small set of fatal startup errors.
package matcherr

import "fmt"

// Kind identifies a class of failure from the taxonomy in spec §7.
type Kind string

const (
	KindInvalidURL             Kind = "invalid_url"
	KindTimeout                Kind = "timeout"
	KindNetworkError           Kind = "network_error"
	KindHTTPError              Kind = "http_error"
	KindUnsupportedContentType Kind = "unsupported_content_type"
	KindInvalidImage           Kind = "invalid_image"
	KindTooLarge               Kind = "too_large"
	KindEncodeFailure          Kind = "encode_failure"

	KindIOFailure    Kind = "io_failure"
	KindCorruptEntry Kind = "corrupt_entry"

	KindNotReady    Kind = "not_ready"
	KindEmptyIndex  Kind = "empty_index"

	KindModelLoadFailure Kind = "model_load_failure"
	KindCacheDirUnusable Kind = "cache_dir_unusable"
)

// fatalKinds abort the owning process rather than degrade gracefully.
var fatalKinds = map[Kind]bool{
	KindModelLoadFailure: true,
	KindCacheDirUnusable: true,
}

// Error is the taxonomy-tagged error type produced by every component
// in this module. It always carries the operation's Kind so callers can
// branch on failure class without string matching.
type Error struct {
	Kind    Kind
	URL     string // populated for per-image errors, empty otherwise
	Status  int    // HTTP status code, populated for KindHTTPError only
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.URL != "" && e.Status != 0 {
		return fmt.Sprintf("%s: %s (%s, status %d): %v", e.Kind, e.Message, e.URL, e.Status, e.Err)
	}
	if e.URL != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Kind, e.Message, e.URL, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether this error class should abort process startup
// rather than be recorded and skipped.
func (e *Error) Fatal() bool { return fatalKinds[e.Kind] }

// New builds a per-operation Error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// NewForURL builds a per-image Error tagged with the URL that failed.
func NewForURL(kind Kind, url, message string, err error) *Error {
	return &Error{Kind: kind, URL: url, Message: message, Err: err}
}

// NewHTTPError builds a KindHTTPError tagged with the URL and response
// status code that failed, so callers can gate retry policy on status
// without parsing the error message.
func NewHTTPError(status int, url, message string, err error) *Error {
	return &Error{Kind: KindHTTPError, URL: url, Status: status, Message: message, Err: err}
}

// StatusOf extracts the HTTP status code from err if it (or something
// it wraps) is a KindHTTPError *Error, and ok=false otherwise.
func StatusOf(err error) (int, bool) {
	var me *Error
	for err != nil {
		if e, isErr := err.(*Error); isErr {
			me = e
			break
		}
		u, isWrapper := err.(interface{ Unwrap() error })
		if !isWrapper {
			break
		}
		err = u.Unwrap()
	}
	if me == nil || me.Kind != KindHTTPError {
		return 0, false
	}
	return me.Status, true
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var me *Error
	for err != nil {
		if e, isErr := err.(*Error); isErr {
			me = e
			break
		}
		u, isWrapper := err.(interface{ Unwrap() error })
		if !isWrapper {
			break
		}
		err = u.Unwrap()
	}
	if me == nil {
		return "", false
	}
	return me.Kind, true
}
