package sessions_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func TestParseAccessToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedToken(t, jwtlib.MapClaims{
		"sub":   "user-1",
		"email": "john.doe@example.com",
		"exp":   exp.Unix(),
		"app_metadata": map[string]any{
			"provider":  "google",
			"providers": []any{"google", "email"},
		},
		"user_metadata": map[string]any{"full_name": "John Doe"},
	})

	claims, err := sessions.ParseAccessToken(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Sub)
	require.Equal(t, "john.doe@example.com", claims.Email)
	require.Equal(t, "John Doe", claims.Name)
	require.Equal(t, "google", claims.Provider)
	require.Equal(t, []string{"google", "email"}, claims.Providers)
	require.True(t, exp.Equal(claims.ExpiresAt))
}

func TestParseAccessToken_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := sessions.ParseAccessToken("  ")
		require.ErrorIs(t, err, clienterrors.ErrInvalidToken)
	})

	t.Run("not a jwt", func(t *testing.T) {
		_, err := sessions.ParseAccessToken("opaque-token")
		require.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := sessions.ParseAccessToken(signedToken(t, jwtlib.MapClaims{"email": "a@b.c"}))
		require.ErrorIs(t, err, clienterrors.ErrMissingSubject)
	})
}

func TestFromTokens(t *testing.T) {
	raw := signedToken(t, jwtlib.MapClaims{"sub": "user-2", "exp": time.Now().Add(time.Minute).Unix()})

	session, err := sessions.FromTokens(raw, "refresh-2")
	require.NoError(t, err)
	require.Equal(t, "user-2", session.Subject())
	require.Equal(t, "refresh-2", session.RefreshToken)
	require.False(t, session.Expired(time.Now()))
	require.True(t, session.Expired(time.Now().Add(2*time.Minute)))
}

func TestSession_CloneIsIndependent(t *testing.T) {
	original := &sessions.Session{
		AccessToken: "a",
		User:        &sessions.User{ID: "u1", Metadata: map[string]any{"k": "v"}},
	}
	clone := original.Clone()
	clone.User.ID = "u2"
	clone.User.Metadata["k"] = "changed"

	require.Equal(t, "u1", original.Subject())
	require.Equal(t, "v", original.User.Metadata["k"])

	var nilSession *sessions.Session
	require.Nil(t, nilSession.Clone())
	require.Equal(t, "", nilSession.Subject())
	require.False(t, nilSession.HasUser())
}
