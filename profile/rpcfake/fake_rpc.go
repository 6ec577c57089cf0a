package rpcfake

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/pkg/errors"
)

var _ profile.RPC = (*FakeRPC)(nil)

// ErrScripted is returned for attempts scripted to fail
var ErrScripted = errors.New("scripted rpc failure")

// FakeRPC answers NeedsProfileCompletion from a script. Each call consumes the
// next scripted outcome; once the script is exhausted Needs is returned.
type FakeRPC struct {
	mu sync.Mutex

	Needs       bool
	Delay       time.Duration
	CompleteErr error

	failures  int
	calls     int
	completed []profile.Fields
}

func New(needs bool) *FakeRPC {
	return &FakeRPC{Needs: needs}
}

// FailNext makes the next n calls fail with ErrScripted
func (f *FakeRPC) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *FakeRPC) NeedsProfileCompletion(ctx context.Context) (bool, error) {
	f.mu.Lock()
	f.calls++
	delay := f.Delay
	fail := f.failures > 0
	if fail {
		f.failures--
	}
	needs := f.Needs
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if fail {
		return false, ErrScripted
	}
	return needs, nil
}

func (f *FakeRPC) CompleteProfile(ctx context.Context, fields profile.Fields) (*profile.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CompleteErr != nil {
		return nil, f.CompleteErr
	}
	f.completed = append(f.completed, fields)
	f.Needs = false
	return &profile.Result{Completed: true}, nil
}

func (f *FakeRPC) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeRPC) Completed() []profile.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]profile.Fields(nil), f.completed...)
}
