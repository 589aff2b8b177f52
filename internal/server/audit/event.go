// Package audit records security events: authentication outcomes, access
// denials and other decisions worth reviewing later. Every event carries a
// stable code, the acting principal and where the request came from.
package audit

import (
	"context"
	"time"
)

// Code identifies the kind of event. Codes are stable and safe to alert on.
type Code string

const (
	LoginSucceeded    Code = "auth.login.succeeded"
	LoginUnknownEmail Code = "auth.login.unknown_email"
	LoginBadPassword  Code = "auth.login.bad_password"
	LoginLockedOut    Code = "auth.login.locked_out"
	LoginLockEngaged  Code = "auth.login.lock_engaged"

	RegisterSucceeded      Code = "auth.register.succeeded"
	RegisterRejected       Code = "auth.register.rejected"
	RegisterDuplicateEmail Code = "auth.register.duplicate_email"

	SessionMissing   Code = "auth.session.missing"
	SessionMalformed Code = "auth.session.malformed"
	SessionInvalid   Code = "auth.session.invalid"
	SessionExpired   Code = "auth.session.expired"

	RoleDenied     Code = "authz.role.denied"
	ResourceDenied Code = "authz.resource.denied"

	ResetRequested    Code = "password_reset.requested"
	ResetUnknownEmail Code = "password_reset.unknown_email"
	ResetMailFailed   Code = "password_reset.mail_failed"
	ResetInvalidToken Code = "password_reset.invalid_token"
	ResetExpiredToken Code = "password_reset.expired_token"
	ResetRejected     Code = "password_reset.rejected"
	ResetSucceeded    Code = "password_reset.succeeded"

	BreachCheckUnavailable Code = "password.breach_check_unavailable"

	ValidationFailed Code = "http.validation_failed"
	CORSRejected     Code = "http.cors_rejected"
	UnknownResource  Code = "http.unknown_resource"
	RateLimited      Code = "http.rate_limited"
)

// Event is a single security decision. Zero values for PrincipalID and the
// request fields are filled in by Recorder.Record.
type Event struct {
	Code        Code           `json:"code"`
	PrincipalID string         `json:"principal_id"`
	Reason      string         `json:"reason,omitempty"`
	IP          string         `json:"ip,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Resource    string         `json:"resource,omitempty"`
	Time        time.Time      `json:"time"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// RequestInfo describes where a request came from.
type RequestInfo struct {
	IP        string
	UserAgent string
	Resource  string
}

type ctxKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(ctxKey{}).(RequestInfo)
	return info
}
