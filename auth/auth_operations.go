package auth

import (
	"context"

	"github.com/jrsteele09/go-auth-client/authstate"
	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog/log"
)

// SignInWithProvider runs the interactive sign-in with provider. On success
// the new session is applied with an unknown profile status and Loading stays
// set until the scheduled profile check delivers.
func (s *Service) SignInWithProvider(ctx context.Context, provider string) error {
	s.store.Apply(authstate.StartOperation())

	authURL, err := s.deps.Platform.SignInURL(ctx, provider, s.redirectTarget)
	if err != nil {
		return s.fail(newError(OAuthError, err), "sign-in url")
	}

	cb, err := s.deps.Redirector.Authorize(ctx, authURL)
	if err != nil {
		return s.fail(redirectError(err), "sign-in redirect")
	}
	if cb.Failed() {
		return s.fail(callbackError(cb), "sign-in callback")
	}
	if cb.AccessToken == "" {
		return s.fail(newError(NoAccessTokenError, nil), "sign-in callback")
	}

	session, err := s.deps.Platform.CompleteSignIn(ctx, cb.AccessToken, cb.RefreshToken)
	if err != nil {
		return s.fail(newError(SessionSetError, err), "complete sign-in")
	}

	s.store.Apply(
		authstate.WithSession(session),
		authstate.WithProfileStatus(authstate.ProfileUnknown),
		authstate.WithLoading(session.HasUser()),
		authstate.WithError(nil),
	)
	s.scheduleProfileCheck(session)
	log.Info().Str("provider", provider).Str("subject", session.Subject()).Msg("signed in")
	return nil
}

// SignOut ends the session with the platform. On success every session field
// is cleared and any pending probe is cancelled.
func (s *Service) SignOut(ctx context.Context) error {
	s.store.Apply(authstate.StartOperation())

	if err := s.deps.Platform.SignOut(ctx); err != nil {
		return s.fail(newError(SignOutError, err), "sign-out")
	}
	s.prober.Cancel()
	s.store.Apply(authstate.SignedOut())
	log.Info().Msg("signed out")
	return nil
}

// GetSession fetches the platform's current session and applies it. A session
// with a user resets the profile status to unknown and is checked again, even
// when the subject is unchanged.
func (s *Service) GetSession(ctx context.Context) (*sessions.Session, error) {
	s.store.Apply(authstate.StartOperation())

	session, err := s.deps.Platform.CurrentSession(ctx)
	if err != nil {
		return nil, s.fail(newError(SessionInitError, err), "get session")
	}

	s.store.Apply(
		authstate.WithSession(session),
		authstate.WithProfileStatus(authstate.ProfileUnknown),
		authstate.WithLoading(session.HasUser()),
		authstate.WithError(nil),
	)
	s.scheduleProfileCheck(session)
	return session, nil
}

// CheckProfile schedules a profile check for the current session, if it has a
// user.
func (s *Service) CheckProfile() {
	s.scheduleProfileCheck(s.store.Snapshot().Session)
}

// scheduleProfileCheck marks the state as loading and hands session to the
// prober. The delivered result clears Loading.
func (s *Service) scheduleProfileCheck(session *sessions.Session) {
	if !session.HasUser() {
		return
	}
	s.store.Apply(authstate.WithLoading(true))
	s.prober.Schedule(session)
}

// CompleteProfile submits the onboarding fields. Success marks the profile
// complete for the current session.
func (s *Service) CompleteProfile(ctx context.Context, fields profile.Fields) (*profile.Result, error) {
	s.store.Apply(authstate.StartOperation())

	result, err := s.deps.RPC.CompleteProfile(ctx, fields)
	if err != nil {
		return nil, s.fail(newError(ProfileUpdateError, err), "complete profile")
	}
	if !result.Completed {
		authErr := newError(ProfileUpdateError, nil)
		if result.Message != "" {
			authErr.Message = result.Message
		}
		return result, s.fail(authErr, "complete profile")
	}

	s.store.Apply(
		authstate.WithProfileStatus(authstate.ProfileComplete),
		authstate.WithLoading(false),
		authstate.WithError(nil),
	)
	return result, nil
}

// fail records authErr in the state and returns it. The session committed
// earlier is kept; its profile status goes back to unknown.
func (s *Service) fail(authErr *Error, step string) error {
	log.Err(authErr).Str("kind", string(authErr.Kind)).Str("step", step).Msg("auth operation failed")
	s.store.Apply(
		authstate.WithLoading(false),
		authstate.WithProfileStatus(authstate.ProfileUnknown),
		authstate.WithError(authErr),
	)
	return authErr
}
