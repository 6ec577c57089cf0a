package auth

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/authstate"
	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/probe"
	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/jrsteele09/go-auth-client/redirect"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Dependencies holds the external collaborators of the Service
type Dependencies struct {
	Platform   identity.Platform   // Identity platform issuing sessions and events
	RPC        profile.RPC         // Remote profile procedures
	Redirector redirect.Redirector // Interactive browser round trip for sign-in
}

// Service reconciles identity platform events, the cached session and the
// profile completion probe into one AuthState.
type Service struct {
	deps           Dependencies
	store          *authstate.Store
	prober         *probe.Prober
	proberOptions  []probe.ProberOption
	redirectTarget string

	initOnce sync.Once
	initErr  error
	sub      subscription
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

// WithStore shares an existing store instead of creating one
func WithStore(store *authstate.Store) ServiceOption {
	return func(s *Service) {
		s.store = store
	}
}

// WithProberOptions tunes the profile completion probe
func WithProberOptions(options ...probe.ProberOption) ServiceOption {
	return func(s *Service) {
		s.proberOptions = append(s.proberOptions, options...)
	}
}

// WithRedirectTarget sets the URL the provider redirects back to
func WithRedirectTarget(target string) ServiceOption {
	return func(s *Service) {
		s.redirectTarget = target
	}
}

// NewService validates the dependencies and wires the prober to the store.
// When no redirect target is given and the redirector knows its own
// callback URL, that URL is used.
func NewService(deps Dependencies, options ...ServiceOption) (*Service, error) {
	if deps.Platform == nil {
		return nil, errors.New("[NewService] platform is required")
	}
	if deps.RPC == nil {
		return nil, errors.New("[NewService] rpc is required")
	}
	if deps.Redirector == nil {
		return nil, errors.New("[NewService] redirector is required")
	}

	s := &Service{deps: deps}
	for _, opt := range options {
		opt(s)
	}
	if s.store == nil {
		s.store = authstate.NewStore()
	}
	if s.redirectTarget == "" {
		if r, ok := deps.Redirector.(interface{ RedirectURL() string }); ok {
			s.redirectTarget = r.RedirectURL()
		}
	}

	prober, err := probe.NewProber(deps.Platform, deps.RPC, s.deliverProbe, s.proberOptions...)
	if err != nil {
		return nil, errors.Wrap(err, "[NewService] prober")
	}
	s.prober = prober
	return s, nil
}

// State returns the current snapshot.
func (s *Service) State() authstate.AuthState {
	return s.store.Snapshot()
}

// Subscribe registers fn for every committed state change.
func (s *Service) Subscribe(fn func(authstate.AuthState)) (unsubscribe func()) {
	return s.store.Subscribe(fn)
}

// Initialize loads the current session once per Service. Later calls return
// the first outcome.
func (s *Service) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.initialize(ctx)
	})
	return s.initErr
}

func (s *Service) initialize(ctx context.Context) error {
	session, err := s.deps.Platform.CurrentSession(ctx)
	if err != nil {
		authErr := newError(SessionInitError, err)
		log.Err(err).Msg("failed to load current session")
		s.store.Apply(authstate.WithSession(nil), authstate.WithLoading(false), authstate.WithError(authErr))
		return authErr
	}
	if session == nil {
		s.store.Apply(authstate.SignedOut())
		return nil
	}
	s.store.Apply(
		authstate.WithSession(session),
		authstate.WithProfileStatus(authstate.ProfileUnknown),
		authstate.WithLoading(false),
		authstate.WithError(nil),
	)
	return nil
}

// Mount attaches a consumer. The first mount registers the platform
// listener; the returned func detaches and may be called any number of times.
// When the last consumer detaches the listener is removed and any pending
// probe is cancelled.
func (s *Service) Mount() (unmount func()) {
	s.sub.acquire(s.deps.Platform, s.handleEvent)

	var once sync.Once
	return func() {
		once.Do(func() {
			if s.sub.release() {
				s.prober.Cancel()
				s.store.Apply(authstate.WithLoading(false))
				log.Debug().Msg("platform listener released")
			}
		})
	}
}

// Listening reports whether the platform listener is registered.
func (s *Service) Listening() bool {
	return s.sub.active()
}

// Close cancels any pending probe and waits for a running one to deliver.
func (s *Service) Close() {
	s.prober.Cancel()
	s.prober.Wait()
}

func (s *Service) handleEvent(event identity.Event) {
	log.Debug().Str("event", string(event.Kind)).Str("subject", event.Session.Subject()).Msg("platform event")

	if event.Kind == identity.EventSignedIn && event.Session.HasUser() {
		s.scheduleProfileCheck(event.Session)
		return
	}
	s.store.Apply(
		authstate.WithSession(event.Session),
		authstate.WithProfileStatus(authstate.ProfileUnknown),
		authstate.WithLoading(false),
		authstate.WithError(nil),
	)
}

func (s *Service) deliverProbe(result probe.Result) {
	changes := []authstate.Change{
		authstate.WithSession(result.Session),
		authstate.WithProfileStatus(authstate.ProfileStatusFromProbe(result.NeedsCompletion)),
		authstate.WithLoading(false),
		authstate.WithError(nil),
	}
	if result.Err != nil {
		changes = append(changes, authstate.WithError(newError(ProfileProbeError, result.Err)))
	}
	s.store.Apply(changes...)
}
