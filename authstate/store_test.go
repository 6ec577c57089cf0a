package authstate_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/authstate"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/stretchr/testify/require"
)

func session(sub string) *sessions.Session {
	return &sessions.Session{AccessToken: "access-" + sub, User: &sessions.User{ID: sub}}
}

// requireInvariants checks the properties every committed snapshot must hold
func requireInvariants(t *testing.T, s authstate.AuthState) {
	t.Helper()
	if s.Session == nil {
		require.Nil(t, s.User)
		require.Equal(t, authstate.ProfileUnknown, s.NeedsProfileCompletion)
		return
	}
	require.Equal(t, s.Session.User, s.User)
}

// holdsInvariants is requireInvariants for callbacks off the test goroutine
func holdsInvariants(s authstate.AuthState) bool {
	if s.Session == nil {
		return s.User == nil && s.NeedsProfileCompletion == authstate.ProfileUnknown
	}
	return s.User == s.Session.User
}

func TestNewStore_StartsLoading(t *testing.T) {
	s := authstate.NewStore()

	snap := s.Snapshot()
	require.True(t, snap.Loading)
	require.False(t, snap.SignedIn())
	require.Equal(t, authstate.ProfileUnknown, snap.NeedsProfileCompletion)
}

func TestApply_UserFollowsSession(t *testing.T) {
	s := authstate.NewStore()

	snap := s.Apply(authstate.WithSession(session("u1")), authstate.WithLoading(false))
	requireInvariants(t, snap)
	require.Equal(t, "u1", snap.User.ID)

	snap = s.Apply(authstate.WithSession(nil))
	requireInvariants(t, snap)
	require.Nil(t, snap.User)
}

func TestApply_ProfileStatusRequiresSession(t *testing.T) {
	s := authstate.NewStore()

	snap := s.Apply(authstate.WithProfileStatus(authstate.ProfileComplete))
	require.Equal(t, authstate.ProfileUnknown, snap.NeedsProfileCompletion, "no session, no answer")

	snap = s.Apply(authstate.WithSession(&sessions.Session{AccessToken: "a"}), authstate.WithProfileStatus(authstate.ProfileComplete))
	require.Equal(t, authstate.ProfileUnknown, snap.NeedsProfileCompletion, "session without identity cannot be probed")
}

func TestApply_SubjectChangeResetsProfileStatus(t *testing.T) {
	s := authstate.NewStore()
	s.Apply(authstate.WithSession(session("u1")), authstate.WithProfileStatus(authstate.ProfileComplete))

	t.Run("same subject keeps the answer", func(t *testing.T) {
		snap := s.Apply(authstate.WithSession(session("u1")))
		require.Equal(t, authstate.ProfileComplete, snap.NeedsProfileCompletion)
	})

	t.Run("new subject resets the answer", func(t *testing.T) {
		snap := s.Apply(authstate.WithSession(session("u2")))
		require.Equal(t, authstate.ProfileUnknown, snap.NeedsProfileCompletion)
	})

	t.Run("explicit answer for the new subject sticks", func(t *testing.T) {
		s.Apply(authstate.WithSession(session("u1")), authstate.WithProfileStatus(authstate.ProfileComplete))
		snap := s.Apply(authstate.WithSession(session("u3")), authstate.WithProfileStatus(authstate.ProfileComplete))
		require.Equal(t, authstate.ProfileComplete, snap.NeedsProfileCompletion)
	})
}

func TestApply_StartOperationAndSignedOut(t *testing.T) {
	s := authstate.NewStore()
	s.Apply(
		authstate.WithSession(session("u1")),
		authstate.WithProfileStatus(authstate.ProfileRequired),
		authstate.WithError(errors.New("old")),
	)

	snap := s.Apply(authstate.StartOperation())
	require.True(t, snap.Loading)
	require.NoError(t, snap.Error)
	require.Equal(t, "u1", snap.Subject(), "starting an operation keeps the session")

	snap = s.Apply(authstate.SignedOut())
	require.Equal(t, authstate.AuthState{}, snap)
}

func TestApply_SnapshotIsIsolatedFromCaller(t *testing.T) {
	s := authstate.NewStore()
	in := session("u1")
	s.Apply(authstate.WithSession(in))

	in.User.ID = "mutated"
	require.Equal(t, "u1", s.Snapshot().Subject())
}

func TestSubscribe_NotifiedAfterMerge(t *testing.T) {
	s := authstate.NewStore()

	var seen []authstate.AuthState
	unsubscribe := s.Subscribe(func(st authstate.AuthState) {
		require.Equal(t, st, s.Snapshot(), "subscriber sees the committed state")
		seen = append(seen, st)
	})

	s.Apply(authstate.WithLoading(false))
	s.Apply(authstate.WithSession(session("u1")))
	unsubscribe()
	unsubscribe()
	s.Apply(authstate.SignedOut())

	require.Len(t, seen, 2)
	require.False(t, seen[0].Loading)
	require.Equal(t, "u1", seen[1].Subject())
}

func TestSubscribe_CallbackMayApply(t *testing.T) {
	s := authstate.NewStore()

	var seen []authstate.ProfileStatus
	s.Subscribe(func(st authstate.AuthState) {
		seen = append(seen, st.NeedsProfileCompletion)
		if st.SignedIn() && st.NeedsProfileCompletion == authstate.ProfileUnknown {
			s.Apply(authstate.WithProfileStatus(authstate.ProfileRequired))
		}
	})

	done := make(chan authstate.AuthState)
	go func() {
		done <- s.Apply(authstate.WithSession(session("u1")))
	}()

	select {
	case snap := <-done:
		require.Equal(t, authstate.ProfileUnknown, snap.NeedsProfileCompletion)
	case <-time.After(time.Second):
		require.FailNow(t, "Apply from a subscriber did not return")
	}
	require.Equal(t, []authstate.ProfileStatus{authstate.ProfileUnknown, authstate.ProfileRequired}, seen, "nested commit delivered after the outer one")
	require.Equal(t, authstate.ProfileRequired, s.Snapshot().NeedsProfileCompletion)
}

func TestSubscribe_PanickingCallbackDoesNotStallDelivery(t *testing.T) {
	s := authstate.NewStore()

	var seen []bool
	s.Subscribe(func(st authstate.AuthState) {
		seen = append(seen, st.Loading)
		if st.Loading {
			panic("subscriber failed")
		}
	})

	require.Panics(t, func() { s.Apply(authstate.WithLoading(true)) })
	s.Apply(authstate.WithLoading(false))
	require.Equal(t, []bool{true, false}, seen)
}

func TestApply_ConcurrentWritersKeepInvariants(t *testing.T) {
	s := authstate.NewStore()

	var (
		mu         sync.Mutex
		violations []string
	)
	s.Subscribe(func(st authstate.AuthState) {
		if !holdsInvariants(st) {
			mu.Lock()
			violations = append(violations, fmt.Sprintf("%+v", st))
			mu.Unlock()
		}
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				s.Apply(authstate.WithSession(session("u1")), authstate.WithProfileStatus(authstate.ProfileComplete))
			case 1:
				s.Apply(authstate.SignedOut())
			default:
				s.Apply(authstate.WithSession(session("u2")))
			}
		}(i)
	}
	wg.Wait()
	requireInvariants(t, s.Snapshot())
	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, violations)
}

func TestProfileStatus(t *testing.T) {
	require.Equal(t, authstate.ProfileRequired, authstate.ProfileStatusFromProbe(true))
	require.Equal(t, authstate.ProfileComplete, authstate.ProfileStatusFromProbe(false))
	require.Equal(t, "unknown", authstate.ProfileUnknown.String())
	require.Equal(t, "required", authstate.ProfileRequired.String())
	require.Equal(t, "complete", authstate.ProfileComplete.String())
}
