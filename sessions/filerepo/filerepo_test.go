package filerepo_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/jrsteele09/go-auth-client/sessions/filerepo"
	"github.com/stretchr/testify/require"
)

func testSession() *sessions.Session {
	return &sessions.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Unix(1_900_000_000, 0).UTC(),
		User:         &sessions.User{ID: "u1", Email: "u1@example.com"},
	}
}

func TestRepo_LoadEmpty(t *testing.T) {
	repo, err := filerepo.New(filepath.Join(t.TempDir(), "session.bin"), "secret")
	require.NoError(t, err)

	session, err := repo.Load()
	require.NoError(t, err)
	require.Nil(t, session)
}

func TestRepo_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.bin")
	repo, err := filerepo.New(path, "secret")
	require.NoError(t, err)

	require.NoError(t, repo.Save(testSession()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "refresh-1", "refresh token must not be stored in clear text")

	loaded, err := repo.Load()
	require.NoError(t, err)
	require.Equal(t, "u1", loaded.Subject())
	require.Equal(t, "refresh-1", loaded.RefreshToken)

	require.NoError(t, repo.Clear())
	require.NoError(t, repo.Clear(), "clearing twice is not an error")

	loaded, err = repo.Load()
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRepo_WrongSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bin")
	repo, err := filerepo.New(path, "secret")
	require.NoError(t, err)
	require.NoError(t, repo.Save(testSession()))

	other, err := filerepo.New(path, "another-secret")
	require.NoError(t, err)

	_, err = other.Load()
	require.ErrorIs(t, err, filerepo.ErrCorrupt)
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := filerepo.New("session.bin", "")
	require.ErrorIs(t, err, filerepo.ErrEmptySecret)
}
