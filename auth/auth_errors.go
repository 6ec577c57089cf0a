package auth

import (
	"context"
	"strings"

	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/redirect"
	"github.com/pkg/errors"
)

// ErrorKind classifies failures surfaced through AuthState.Error.
type ErrorKind string

const (
	SessionInitError    ErrorKind = "SessionInitError"
	OAuthError          ErrorKind = "OAuthError"
	OAuthCancelledError ErrorKind = "OAuthCancelledError"
	NoAccessTokenError  ErrorKind = "NoAccessTokenError"
	SessionSetError     ErrorKind = "SessionSetError"
	ProfileProbeError   ErrorKind = "ProfileProbeError"
	SignOutError        ErrorKind = "SignOutError"
	ProfileUpdateError  ErrorKind = "ProfileUpdateError"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrSessionInit    = &Error{Kind: SessionInitError}
	ErrOAuth          = &Error{Kind: OAuthError}
	ErrOAuthCancelled = &Error{Kind: OAuthCancelledError}
	ErrNoAccessToken  = &Error{Kind: NoAccessTokenError}
	ErrSessionSet     = &Error{Kind: SessionSetError}
	ErrProfileProbe   = &Error{Kind: ProfileProbeError}
	ErrSignOut        = &Error{Kind: SignOutError}
	ErrProfileUpdate  = &Error{Kind: ProfileUpdateError}
)

// Provider error codes returned when the account's email may not be used.
var restrictedEmailCodes = map[string]bool{
	"email_address_not_authorized":      true,
	"provider_email_needs_verification": true,
}

var defaultMessages = map[ErrorKind]string{
	SessionInitError:    "Could not restore your session.",
	OAuthError:          "Sign-in with the provider failed.",
	OAuthCancelledError: "Sign-in was cancelled.",
	NoAccessTokenError:  "Sign-in did not return an access token.",
	SessionSetError:     "Could not start a session with the returned tokens.",
	ProfileProbeError:   "Could not check whether your profile is complete.",
	SignOutError:        "Sign-out failed.",
	ProfileUpdateError:  "Could not update your profile.",
}

const restrictedEmailMessage = "This email address is not allowed to sign in with this provider."

// Error is the normalized failure of an auth operation. Message is safe to
// show to the user.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func newError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Message: defaultMessages[kind], Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var authErr *Error
	if clienterrors.As(err, &authErr) {
		return authErr.Kind, true
	}
	return "", false
}

// callbackError maps a provider error callback to an *Error.
func callbackError(cb *redirect.Callback) *Error {
	cause := errors.New(strings.TrimSpace(strings.Join([]string{cb.Error, cb.ErrorCode, cb.ErrorDescription}, " ")))
	switch {
	case cb.Error == "access_denied":
		return newError(OAuthCancelledError, cause)
	case restrictedEmailCodes[cb.ErrorCode] || restrictedEmailCodes[cb.Error]:
		return &Error{Kind: OAuthError, Message: restrictedEmailMessage, Err: cause}
	case cb.ErrorDescription != "":
		return &Error{Kind: OAuthError, Message: cb.ErrorDescription, Err: cause}
	default:
		return newError(OAuthError, cause)
	}
}

// redirectError maps a failed redirect round trip to an *Error.
func redirectError(err error) *Error {
	if clienterrors.Is(err, context.Canceled) || clienterrors.Is(err, context.DeadlineExceeded) {
		return newError(OAuthCancelledError, err)
	}
	return newError(OAuthError, err)
}
