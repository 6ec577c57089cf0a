// Package identity defines the contract with the external identity platform
// that issues, refreshes and revokes sessions.
package identity

import (
	"context"

	"github.com/jrsteele09/go-auth-client/sessions"
)

// EventKind names an authentication change reported by the platform.
type EventKind string

const (
	EventInitialSession   EventKind = "INITIAL_SESSION"
	EventSignedIn         EventKind = "SIGNED_IN"
	EventSignedOut        EventKind = "SIGNED_OUT"
	EventTokenRefreshed   EventKind = "TOKEN_REFRESHED"
	EventUserUpdated      EventKind = "USER_UPDATED"
	EventPasswordRecovery EventKind = "PASSWORD_RECOVERY"
)

// Event is a single change notification. Session is nil when the change left
// no authenticated session behind.
type Event struct {
	Kind    EventKind
	Session *sessions.Session
}

// Listener receives platform events. It may be called from any goroutine.
type Listener func(Event)

// Platform is the identity platform as seen by the client.
type Platform interface {
	// CurrentSession returns the cached session, or nil when signed out
	CurrentSession(ctx context.Context) (*sessions.Session, error)

	// SignInURL returns the URL that starts an interactive sign-in with provider.
	// The platform redirects to redirectTarget once the user is done.
	SignInURL(ctx context.Context, provider, redirectTarget string) (string, error)

	// CompleteSignIn installs the token pair returned by the redirect
	CompleteSignIn(ctx context.Context, accessToken, refreshToken string) (*sessions.Session, error)

	// SignOut ends the current session
	SignOut(ctx context.Context) error

	// RefreshSession rotates the tokens of the current session
	RefreshSession(ctx context.Context) (*sessions.Session, error)

	// Subscribe registers listener and returns the function that removes it
	Subscribe(listener Listener) (unsubscribe func())
}
