package auth

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/identity"
)

// subscription is the guarded handle for the single platform listener.
// The first acquire registers it; the release matching the last acquire
// removes it.
type subscription struct {
	mu          sync.Mutex
	mounts      int
	unsubscribe func()
}

func (s *subscription) acquire(platform identity.Platform, listener identity.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mounts++
	if s.unsubscribe == nil {
		s.unsubscribe = platform.Subscribe(listener)
	}
}

// release reports whether the listener was removed by this call.
func (s *subscription) release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounts == 0 {
		return false
	}
	s.mounts--
	if s.mounts > 0 || s.unsubscribe == nil {
		return false
	}
	s.unsubscribe()
	s.unsubscribe = nil
	return true
}

func (s *subscription) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribe != nil
}
