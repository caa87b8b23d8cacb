package backend

import "errors"

// Kind classifies a backend failure into a closed set of categories so
// that callers can decide whether to surface an error banner or treat
// the condition as an expected empty state. Raw backend payloads are
// translated into kinds here at the adapter boundary; upstream code
// never pattern-matches on free text.
type Kind int

const (
	KindGeneric Kind = iota
	KindNotConfigured
	KindNotFound
	KindSessionMissing
	KindNetwork
	KindTimeout
	KindValidation
	KindConflict
	KindRateLimited
	KindEmailNotConfirmed
	KindInvalidCredentials
)

func (k Kind) String() string {
	switch k {
	case KindNotConfigured:
		return "not_configured"
	case KindNotFound:
		return "not_found"
	case KindSessionMissing:
		return "session_missing"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	case KindEmailNotConfirmed:
		return "email_not_confirmed"
	case KindInvalidCredentials:
		return "invalid_credentials"
	default:
		return "generic"
	}
}

// Error is a classified backend failure. Code carries the raw backend
// error code when one was present (for example "PGRST116" from the data
// store, or "weak_password" from the auth server).
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// KindOf returns the classification of err, or KindGeneric when err is
// not a backend error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindGeneric
}

// IsKind reports whether err is a backend error of the given kind.
func IsKind(err error, k Kind) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == k
}

// CodeOf returns the raw backend error code carried by err, if any.
func CodeOf(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
