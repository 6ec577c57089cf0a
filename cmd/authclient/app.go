package main

import (
	"context"
	"flag"
	"net/url"
	"time"

	"github.com/jrsteele09/go-auth-client/auth"
	"github.com/jrsteele09/go-auth-client/authstate"
	"github.com/jrsteele09/go-auth-client/identity/oidcclient"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/probe"
	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/jrsteele09/go-auth-client/profile/rpcclient"
	"github.com/jrsteele09/go-auth-client/redirect"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/sessions/filerepo"
	sessionrepofakes "github.com/jrsteele09/go-auth-client/sessions/repofakes"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	autoRefreshInterval = time.Minute
	autoRefreshLeeway   = 2 * time.Minute
	signInTimeout       = 5 * time.Minute
)

type app struct {
	cfg           config.Config
	service       *auth.Service
	stopRefresher context.CancelFunc
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	repo, err := sessionRepo(cfg)
	if err != nil {
		return nil, err
	}

	platform, err := oidcclient.New(ctx, cfg.GetIssuerURL(), cfg.GetClientID(), repo, oidcclient.WithAPIKey(cfg.GetAPIKey()))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] identity platform")
	}

	rpc, err := rpcclient.New(cfg.GetProfileRPCURL(), platform, rpcclient.WithAPIKey(cfg.GetAPIKey()))
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] profile rpc")
	}

	redirectURL, err := url.Parse(cfg.GetRedirectURL())
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] redirect url")
	}
	loopback := redirect.NewLoopback(cfg.GetCallbackAddr(), redirect.WithCallbackPath(redirectURL.Path))

	service, err := auth.NewService(
		auth.Dependencies{Platform: platform, RPC: rpc, Redirector: loopback},
		auth.WithRedirectTarget(cfg.GetRedirectURL()),
		auth.WithProberOptions(probe.WithConfig(cfg)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] auth service")
	}

	refreshCtx, stopRefresher := context.WithCancel(ctx)
	go platform.StartAutoRefresh(refreshCtx, autoRefreshInterval, autoRefreshLeeway)

	if err := service.Initialize(ctx); err != nil {
		log.Warn().Err(err).Msg("starting without a session")
	}
	return &app{cfg: cfg, service: service, stopRefresher: stopRefresher}, nil
}

// sessionRepo keeps the session on disk only when a secret is configured
func sessionRepo(cfg config.Config) (sessions.Repo, error) {
	secret := cfg.GetSessionSecret()
	if secret == "" {
		log.Warn().Msg("SESSION_SECRET not set, the session will not outlive this process")
		return sessionrepofakes.NewFakeSessionRepo(), nil
	}
	repo, err := filerepo.New(cfg.GetSessionFile(), secret)
	if err != nil {
		return nil, errors.Wrap(err, "[sessionRepo]")
	}
	return repo, nil
}

func (a *app) close() {
	a.stopRefresher()
	a.service.Close()
}

func (a *app) session(ctx context.Context) error {
	if _, err := a.service.GetSession(ctx); err != nil {
		return err
	}
	a.service.CheckProfile()
	printState(a.awaitProfile(ctx))
	return nil
}

func (a *app) signIn(ctx context.Context, args []string) error {
	provider := a.cfg.GetProvider()
	if len(args) > 0 {
		provider = args[0]
	}
	defer a.service.Mount()()

	signInCtx, cancel := context.WithTimeout(ctx, signInTimeout)
	defer cancel()
	if err := a.service.SignInWithProvider(signInCtx, provider); err != nil {
		return err
	}
	printState(a.awaitProfile(ctx))
	return nil
}

func (a *app) signOut(ctx context.Context) error {
	if err := a.service.SignOut(ctx); err != nil {
		return err
	}
	printState(a.service.State())
	return nil
}

func (a *app) watch(ctx context.Context) error {
	defer a.service.Mount()()
	unsubscribe := a.service.Subscribe(printState)
	defer unsubscribe()

	printState(a.service.State())
	if _, err := a.service.GetSession(ctx); err != nil {
		log.Err(err).Msg("session refresh failed")
	}
	<-ctx.Done()
	return nil
}

func (a *app) completeProfile(ctx context.Context, args []string) error {
	var fields profile.Fields
	fs := flag.NewFlagSet("complete-profile", flag.ContinueOnError)
	fs.StringVar(&fields.DisplayName, "display-name", "", "name shown to other users")
	fs.StringVar(&fields.Username, "username", "", "unique handle")
	fs.StringVar(&fields.AvatarURL, "avatar-url", "", "profile picture URL")
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(err, "[completeProfile] flags")
	}

	result, err := a.service.CompleteProfile(ctx, fields)
	if err != nil {
		return err
	}
	log.Info().Bool("completed", result.Completed).Str("message", result.Message).Msg("profile submitted")
	printState(a.service.State())
	return nil
}

// awaitProfile waits for a scheduled probe to resolve so the command can
// report the final state.
func (a *app) awaitProfile(ctx context.Context) authstate.AuthState {
	resolved := make(chan authstate.AuthState, 1)
	unsubscribe := a.service.Subscribe(func(s authstate.AuthState) {
		if s.NeedsProfileCompletion != authstate.ProfileUnknown || !s.SignedIn() {
			select {
			case resolved <- s:
			default:
			}
		}
	})
	defer unsubscribe()

	current := a.service.State()
	if !current.SignedIn() || current.NeedsProfileCompletion != authstate.ProfileUnknown {
		return current
	}

	timeout := time.NewTimer(a.probeBudget())
	defer timeout.Stop()
	select {
	case s := <-resolved:
		return s
	case <-timeout.C:
		return a.service.State()
	case <-ctx.Done():
		return a.service.State()
	}
}

// probeBudget is the longest a probe can take before falling back
func (a *app) probeBudget() time.Duration {
	attempts := time.Duration(a.cfg.GetProbeRetries() + 1)
	return a.cfg.GetProbeDebounce() + attempts*a.cfg.GetProbeTimeout() + (attempts-1)*a.cfg.GetProbeRetryDelay() + time.Second
}

func printState(s authstate.AuthState) {
	event := log.Info().
		Bool("signed_in", s.SignedIn()).
		Bool("loading", s.Loading).
		Str("needs_profile_completion", s.NeedsProfileCompletion.String())
	if s.User != nil {
		event = event.Str("subject", s.User.ID).Str("email", s.User.Email).Str("provider", s.User.Provider)
	}
	if s.Session != nil && !s.Session.ExpiresAt.IsZero() {
		event = event.Time("expires_at", s.Session.ExpiresAt)
	}
	event.AnErr("error", s.Error).Msg("auth state")
}
