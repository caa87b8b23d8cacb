package backend

import (
	"encoding/json"
	"net/http"
	"strings"
)

// errorPayload covers the error body shapes of both backend APIs: the
// auth server uses {error_code, msg} (older deployments use
// {error, error_description}), the table API uses {code, message}.
type errorPayload struct {
	Code             string `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	ErrorCode        string `json:"error_code"`
	ErrorField       string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (p errorPayload) text() string {
	for _, s := range []string{p.Msg, p.Message, p.ErrorDescription, p.ErrorField} {
		if s != "" {
			return s
		}
	}
	return ""
}

// classifyAuthError translates an auth server failure into the closed
// error taxonomy. Classification prefers the structured error code;
// message substrings cover older deployments that predate error codes.
// This boundary is the only place raw backend text is inspected.
func classifyAuthError(status int, raw []byte) *Error {
	var p errorPayload
	_ = json.Unmarshal(raw, &p)

	msg := p.text()
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &Error{Kind: KindGeneric, Code: p.ErrorCode, Message: msg}

	switch p.ErrorCode {
	case "user_already_exists", "email_exists", "phone_exists":
		e.Kind = KindConflict
		return e
	case "weak_password":
		e.Kind = KindValidation
		return e
	case "validation_failed":
		e.Kind = KindValidation
		return e
	case "invalid_credentials":
		e.Kind = KindInvalidCredentials
		return e
	case "email_not_confirmed":
		e.Kind = KindEmailNotConfirmed
		return e
	case "over_request_rate_limit", "over_email_send_rate_limit":
		e.Kind = KindRateLimited
		return e
	case "session_not_found", "session_expired", "refresh_token_not_found":
		e.Kind = KindSessionMissing
		return e
	}

	switch {
	case strings.Contains(msg, "already registered"):
		e.Kind = KindConflict
	case strings.Contains(msg, "Password should be at least"):
		e.Kind = KindValidation
		e.Code = "weak_password"
	case strings.Contains(msg, "Invalid email") || strings.Contains(msg, "invalid format"):
		e.Kind = KindValidation
		e.Code = "invalid_email"
	case strings.Contains(msg, "Invalid login credentials"):
		e.Kind = KindInvalidCredentials
	case strings.Contains(msg, "Email not confirmed"):
		e.Kind = KindEmailNotConfirmed
	case strings.Contains(msg, "Too many requests"):
		e.Kind = KindRateLimited
	case strings.Contains(msg, "session missing") || strings.Contains(msg, "Auth session missing"):
		e.Kind = KindSessionMissing
	case status == http.StatusUnauthorized:
		e.Kind = KindSessionMissing
	case status == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
	}
	return e
}

// classifyRestError translates a table API failure. PGRST116 is the
// zero-rows condition for single-object requests; it maps to not-found
// so upstream layers can treat it as an expected empty state.
func classifyRestError(status int, raw []byte) *Error {
	var p errorPayload
	_ = json.Unmarshal(raw, &p)

	msg := p.text()
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &Error{Kind: KindGeneric, Code: p.Code, Message: msg}

	switch p.Code {
	case "PGRST116":
		e.Kind = KindNotFound
		return e
	case "PGRST301":
		e.Kind = KindSessionMissing
		return e
	case "23505": // unique_violation
		e.Kind = KindConflict
		return e
	}

	if status == http.StatusUnauthorized {
		e.Kind = KindSessionMissing
	}
	return e
}
