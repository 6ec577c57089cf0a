package authstate

import (
	"sync"
	"sync/atomic"

	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog/log"
)

// update is the working copy a Change edits before it is committed.
type update struct {
	state      AuthState
	profileSet bool
}

// Change is one field assignment within an Apply call.
type Change func(*update)

// WithSession replaces the session. The user always follows the session.
func WithSession(session *sessions.Session) Change {
	return func(u *update) {
		u.state.Session = session.Clone()
	}
}

func WithLoading(loading bool) Change {
	return func(u *update) {
		u.state.Loading = loading
	}
}

// WithError records err; nil clears the current error.
func WithError(err error) Change {
	return func(u *update) {
		u.state.Error = err
	}
}

func WithProfileStatus(status ProfileStatus) Change {
	return func(u *update) {
		u.state.NeedsProfileCompletion = status
		u.profileSet = true
	}
}

// StartOperation marks an operation as in flight and clears the last error.
func StartOperation() Change {
	return func(u *update) {
		u.state.Loading = true
		u.state.Error = nil
	}
}

// SignedOut resets every field to the signed-out defaults.
func SignedOut() Change {
	return func(u *update) {
		u.state = AuthState{}
		u.profileSet = true
	}
}

// Store owns the AuthState. All writes go through Apply, which replaces the
// whole snapshot; readers never observe a partially applied update.
type Store struct {
	mu        sync.Mutex // serializes commits and guards the queue below
	current   atomic.Pointer[AuthState]
	queue     []AuthState
	notifying bool

	subsMu      sync.RWMutex
	subscribers map[uint64]func(AuthState)
	nextID      uint64
}

// NewStore starts in the loading state: the initial session fetch is pending.
func NewStore() *Store {
	s := &Store{subscribers: make(map[uint64]func(AuthState))}
	s.current.Store(&AuthState{Loading: true})
	return s
}

// Snapshot returns the latest committed state.
func (s *Store) Snapshot() AuthState {
	return *s.current.Load()
}

// Apply merges changes into the current state and commits the result.
// Concurrent calls are applied in the order they acquire the store; the last
// one wins per field.
//
// Subscribers are called without the store lock held, one snapshot at a time
// in commit order. If no delivery is running, Apply delivers its own snapshot
// and everything committed meanwhile before returning. Otherwise the snapshot
// is queued for the running delivery and Apply returns at once, which is what
// happens when a subscriber calls Apply.
func (s *Store) Apply(changes ...Change) AuthState {
	s.mu.Lock()
	prev := *s.current.Load()
	u := &update{state: prev}
	for _, change := range changes {
		change(u)
	}
	next := normalize(prev, u)
	s.current.Store(&next)

	log.Debug().
		Str("sub", next.Subject()).
		Bool("loading", next.Loading).
		Str("profile", next.NeedsProfileCompletion.String()).
		AnErr("error", next.Error).
		Msg("Auth state applied")

	s.queue = append(s.queue, next)
	if s.notifying {
		s.mu.Unlock()
		return next
	}
	s.notifying = true
	s.mu.Unlock()

	s.deliver()
	return next
}

// deliver drains the queue until it stays empty. A panicking subscriber
// releases the delivery role so later commits are still delivered.
func (s *Store) deliver() {
	done := false
	defer func() {
		if !done {
			s.mu.Lock()
			s.queue = nil
			s.notifying = false
			s.mu.Unlock()
		}
	}()

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		if len(batch) == 0 {
			s.notifying = false
			done = true
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		for _, state := range batch {
			for _, fn := range s.subscriberList() {
				fn(state)
			}
		}
	}
}

// Subscribe registers fn for every committed state. fn may call Apply; see
// Apply for the delivery order. The returned function removes it and may be
// called more than once.
func (s *Store) Subscribe(fn func(AuthState)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subscribers, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) subscriberList() []func(AuthState) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	list := make([]func(AuthState), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		list = append(list, fn)
	}
	return list
}

// normalize enforces the state invariants on a candidate snapshot:
// the user is the session's user, and a profile answer only survives while the
// session it was probed for is still the current one.
func normalize(prev AuthState, u *update) AuthState {
	next := u.state
	if next.Session == nil {
		next.User = nil
		next.NeedsProfileCompletion = ProfileUnknown
		return next
	}

	next.User = next.Session.User
	if !next.Session.HasUser() {
		next.NeedsProfileCompletion = ProfileUnknown
	} else if !u.profileSet && next.Session.Subject() != prev.Session.Subject() {
		next.NeedsProfileCompletion = ProfileUnknown
	}
	return next
}
