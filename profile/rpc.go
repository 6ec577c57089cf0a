// Package profile defines the remote procedures that read and complete the
// onboarding profile of the signed-in identity.
package profile

import "context"

// Fields are the onboarding values submitted by the user.
type Fields struct {
	DisplayName string         `json:"display_name,omitempty"`
	Username    string         `json:"username,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Result is the remote store's answer to a profile completion.
type Result struct {
	Completed bool   `json:"completed"`
	Message   string `json:"message,omitempty"`
}

// RPC is authenticated with the current session by the implementation.
type RPC interface {
	// NeedsProfileCompletion reports whether the caller must finish onboarding
	NeedsProfileCompletion(ctx context.Context) (bool, error)

	// CompleteProfile submits the onboarding fields
	CompleteProfile(ctx context.Context, fields Fields) (*Result, error)
}
