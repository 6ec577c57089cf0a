package platformfake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/identity"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/pkg/errors"
)

var _ identity.Platform = (*FakePlatform)(nil)

// FakePlatform is a scriptable identity.Platform. Errors set on the fake are
// returned by the matching call until cleared.
type FakePlatform struct {
	mu sync.Mutex

	session   *sessions.Session
	listeners map[int]identity.Listener
	nextID    int

	CurrentSessionErr error
	SignInURLErr      error
	CompleteSignInErr error
	SignOutErr        error
	RefreshErr        error

	// EmitOnSignIn makes CompleteSignIn publish SIGNED_IN like a real platform
	EmitOnSignIn bool

	refreshCalls   int
	signOutCalls   int
	subscribeCalls int
}

func New() *FakePlatform {
	return &FakePlatform{listeners: make(map[int]identity.Listener)}
}

// SetSession replaces the platform's current session without emitting events
func (p *FakePlatform) SetSession(session *sessions.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = session.Clone()
}

func (p *FakePlatform) CurrentSession(ctx context.Context) (*sessions.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CurrentSessionErr != nil {
		return nil, p.CurrentSessionErr
	}
	return p.session.Clone(), nil
}

func (p *FakePlatform) SignInURL(ctx context.Context, provider, redirectTarget string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SignInURLErr != nil {
		return "", p.SignInURLErr
	}
	return "https://platform.test/authorize?provider=" + provider + "&redirect_to=" + redirectTarget, nil
}

func (p *FakePlatform) CompleteSignIn(ctx context.Context, accessToken, refreshToken string) (*sessions.Session, error) {
	p.mu.Lock()
	if p.CompleteSignInErr != nil {
		p.mu.Unlock()
		return nil, p.CompleteSignInErr
	}
	p.session = &sessions.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         &sessions.User{ID: "user-" + accessToken},
	}
	session := p.session.Clone()
	emit := p.EmitOnSignIn
	p.mu.Unlock()

	if emit {
		p.Emit(identity.Event{Kind: identity.EventSignedIn, Session: session})
	}
	return session, nil
}

func (p *FakePlatform) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutCalls++
	if p.SignOutErr != nil {
		return p.SignOutErr
	}
	p.session = nil
	return nil
}

func (p *FakePlatform) RefreshSession(ctx context.Context) (*sessions.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshCalls++
	if p.RefreshErr != nil {
		return nil, p.RefreshErr
	}
	if p.session == nil {
		return nil, errors.New("no session to refresh")
	}
	return p.session.Clone(), nil
}

func (p *FakePlatform) Subscribe(listener identity.Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribeCalls++
	id := p.nextID
	p.nextID++
	p.listeners[id] = listener
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

// Emit delivers event to every registered listener on the calling goroutine
func (p *FakePlatform) Emit(event identity.Event) {
	p.mu.Lock()
	listeners := make([]identity.Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		listeners = append(listeners, l)
	}
	p.mu.Unlock()

	for _, l := range listeners {
		l(event)
	}
}

func (p *FakePlatform) ListenerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners)
}

func (p *FakePlatform) RefreshCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refreshCalls
}

func (p *FakePlatform) SignOutCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signOutCalls
}

func (p *FakePlatform) SubscribeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscribeCalls
}
