package probe

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetryDelay = 1500 * time.Millisecond
	defaultRetries    = 3
	defaultDebounce   = 500 * time.Millisecond
)

// Refresher renews the cached session before each remote check.
type Refresher interface {
	RefreshSession(ctx context.Context) (*sessions.Session, error)
}

// Result is what a scheduled probe hands back to its owner.
type Result struct {
	Session         *sessions.Session
	NeedsCompletion bool
	// Err is only set when the probe run itself failed (a recovered panic).
	Err error
}

// Deliver receives the outcome of every scheduled probe that ran.
type Deliver func(Result)

// Prober answers "must this user complete their profile?" for the signed-in
// subject. Scheduled probes are debounced: only the latest request runs.
type Prober struct {
	refresher Refresher
	rpc       profile.RPC
	deliver   Deliver

	timeout    time.Duration
	retryDelay time.Duration
	retries    int
	debounce   time.Duration

	mu         sync.Mutex
	pending    *time.Timer
	generation uint64
	running    sync.WaitGroup
}

// ProberOption defines a function type to modify the Prober instance.
type ProberOption func(*Prober)

// WithAttemptTimeout bounds each remote call
func WithAttemptTimeout(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.timeout = d
	}
}

func WithRetryDelay(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.retryDelay = d
	}
}

// WithRetries sets the number of attempts after the first
func WithRetries(n int) ProberOption {
	return func(p *Prober) {
		p.retries = n
	}
}

func WithDebounce(d time.Duration) ProberOption {
	return func(p *Prober) {
		p.debounce = d
	}
}

// WithConfig takes every tunable from cfg
func WithConfig(cfg config.ProbeConfig) ProberOption {
	return func(p *Prober) {
		p.timeout = cfg.GetProbeTimeout()
		p.retryDelay = cfg.GetProbeRetryDelay()
		p.retries = cfg.GetProbeRetries()
		p.debounce = cfg.GetProbeDebounce()
	}
}

func NewProber(refresher Refresher, rpc profile.RPC, deliver Deliver, options ...ProberOption) (*Prober, error) {
	if refresher == nil {
		return nil, errors.New("[NewProber] refresher is required")
	}
	if rpc == nil {
		return nil, errors.New("[NewProber] rpc is required")
	}
	if deliver == nil {
		return nil, errors.New("[NewProber] deliver is required")
	}

	p := &Prober{
		refresher:  refresher,
		rpc:        rpc,
		deliver:    deliver,
		timeout:    defaultTimeout,
		retryDelay: defaultRetryDelay,
		retries:    defaultRetries,
		debounce:   defaultDebounce,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.retries < 0 {
		p.retries = 0
	}
	return p, nil
}

// Probe checks whether subject needs to complete their profile. Every attempt
// refreshes the session and then calls the RPC under the attempt timeout.
// When all attempts fail it returns true.
func (p *Prober) Probe(ctx context.Context, subject string) bool {
	needs, err := Retry(ctx, p.retries+1, p.retryDelay, func(ctx context.Context, attempt int) (bool, error) {
		if _, err := p.refresher.RefreshSession(ctx); err != nil {
			log.Debug().Err(err).Str("subject", subject).Int("attempt", attempt).Msg("session refresh before probe failed")
			return false, errors.Wrap(err, "[Prober.Probe] refresh session")
		}
		needs, err := WithTimeout(ctx, p.timeout, p.rpc.NeedsProfileCompletion)
		if err != nil {
			log.Debug().Err(err).Str("subject", subject).Int("attempt", attempt).Msg("profile probe attempt failed")
			return false, errors.Wrap(err, "[Prober.Probe] needs profile completion")
		}
		return needs, nil
	})
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("profile probe exhausted, assuming profile incomplete")
		return true
	}
	return needs
}

// Schedule requests a probe for session's subject after the debounce window.
// A pending request is cancelled and replaced.
func (p *Prober) Schedule(session *sessions.Session) {
	if !session.HasUser() {
		return
	}
	session = session.Clone()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopPendingLocked()
	p.generation++
	generation := p.generation
	p.pending = time.AfterFunc(p.debounce, func() {
		p.fire(generation, session)
	})
	log.Debug().Str("subject", session.Subject()).Dur("debounce", p.debounce).Msg("profile probe scheduled")
}

// Cancel stops the pending probe, if any. A probe that already started runs
// to completion.
func (p *Prober) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopPendingLocked()
	p.generation++
}

// Wait blocks until every probe that has started has delivered its result.
func (p *Prober) Wait() {
	p.running.Wait()
}

func (p *Prober) stopPendingLocked() {
	if p.pending != nil {
		p.pending.Stop()
		p.pending = nil
	}
}

func (p *Prober) fire(generation uint64, session *sessions.Session) {
	p.mu.Lock()
	if generation != p.generation {
		// superseded after the timer had already fired
		p.mu.Unlock()
		return
	}
	p.pending = nil
	p.running.Add(1)
	p.mu.Unlock()
	defer p.running.Done()

	p.run(session)
}

func (p *Prober) run(session *sessions.Session) {
	delivered := false
	defer func() {
		if r := recover(); r != nil && !delivered {
			err := errors.Errorf("[Prober.run] probe panicked: %v", r)
			log.Error().Err(err).Str("subject", session.Subject()).Msg("profile probe failed")
			p.deliver(Result{Session: session, NeedsCompletion: true, Err: err})
		}
	}()

	needs := p.Probe(context.Background(), session.Subject())
	delivered = true
	p.deliver(Result{Session: session, NeedsCompletion: needs})
}
