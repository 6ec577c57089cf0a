// Package authstate holds the single, serialized view of the authentication
// state that every consumer reads.
package authstate

import "github.com/jrsteele09/go-auth-client/sessions"

// ProfileStatus answers "must this identity finish onboarding?".
type ProfileStatus uint8

const (
	// ProfileUnknown means no session, or the probe for it has not resolved
	ProfileUnknown ProfileStatus = iota
	// ProfileRequired means onboarding must be completed
	ProfileRequired
	// ProfileComplete means the identity is fully onboarded
	ProfileComplete
)

func (p ProfileStatus) String() string {
	switch p {
	case ProfileRequired:
		return "required"
	case ProfileComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// ProfileStatusFromProbe maps a probe answer (true = onboarding required).
func ProfileStatusFromProbe(needsCompletion bool) ProfileStatus {
	if needsCompletion {
		return ProfileRequired
	}
	return ProfileComplete
}

// AuthState is an immutable snapshot. Consumers must treat the session and
// user it points to as read-only.
type AuthState struct {
	Session                *sessions.Session
	User                   *sessions.User
	Loading                bool
	Error                  error
	NeedsProfileCompletion ProfileStatus
}

// SignedIn reports whether the snapshot carries a session.
func (s AuthState) SignedIn() bool {
	return s.Session != nil
}

// Subject returns the subject of the cached session, or "".
func (s AuthState) Subject() string {
	return s.Session.Subject()
}
