package sessions

import (
	"maps"
	"time"

	"golang.org/x/oauth2"
)

// User is the identity record embedded in a session by the identity platform.
type User struct {
	ID        string         `json:"id"`                  // Subject identifier ("sub")
	Email     string         `json:"email,omitempty"`     // Primary email, when the provider shares one
	Name      string         `json:"name,omitempty"`      // Display name
	Provider  string         `json:"provider,omitempty"`  // Provider used for the latest sign-in
	Providers []string       `json:"providers,omitempty"` // All providers linked to the identity
	Metadata  map[string]any `json:"metadata,omitempty"`  // Provider supplied profile data
}

// Session is the cached credential bundle issued by the identity platform.
// The platform owns issuance and rotation; the client only keeps a copy.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user,omitempty"`
}

// Subject returns the user identifier the session was issued for, or "".
func (s *Session) Subject() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}

// HasUser reports whether the session carries an identity record.
func (s *Session) HasUser() bool {
	return s.Subject() != ""
}

// Expired reports whether the access token is past its expiry at now.
// A zero expiry never expires.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Token converts the session into an oauth2 token.
func (s *Session) Token() *oauth2.Token {
	if s == nil {
		return nil
	}
	tokenType := s.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    tokenType,
		Expiry:       s.ExpiresAt,
	}
}

// Clone returns a copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.User = s.User.Clone()
	return &c
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Providers = append([]string(nil), u.Providers...)
	c.Metadata = maps.Clone(u.Metadata)
	return &c
}
