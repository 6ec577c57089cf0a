package sessionrepofakes

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo keeps the session in memory
type FakeSessionRepo struct {
	mu      sync.RWMutex
	session *sessions.Session
	saves   int
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{}
}

func (r *FakeSessionRepo) Load() (*sessions.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session.Clone(), nil
}

func (r *FakeSessionRepo) Save(session *sessions.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = session.Clone()
	r.saves++
	return nil
}

func (r *FakeSessionRepo) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session = nil
	return nil
}

// Saves returns how many times Save was called
func (r *FakeSessionRepo) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}
