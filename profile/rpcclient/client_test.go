package rpcclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/jrsteele09/go-auth-client/profile/rpcclient"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type capturedCall struct {
	path   string
	auth   string
	apiKey string
	body   map[string]any
}

func setupServer(t *testing.T, status int, reply string) (*httptest.Server, *capturedCall) {
	t.Helper()
	captured := &capturedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.apiKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&captured.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func newClient(t *testing.T, baseURL string) *rpcclient.Client {
	t.Helper()
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-1", TokenType: "Bearer"})
	c, err := rpcclient.New(baseURL, tokens, rpcclient.WithAPIKey("anon-key"))
	require.NoError(t, err)
	return c
}

func TestClient_NeedsProfileCompletion(t *testing.T) {
	for _, tc := range []struct {
		reply string
		want  bool
	}{
		{reply: "true", want: true},
		{reply: "false", want: false},
	} {
		t.Run(tc.reply, func(t *testing.T) {
			srv, captured := setupServer(t, http.StatusOK, tc.reply)

			needs, err := newClient(t, srv.URL).NeedsProfileCompletion(context.Background())
			require.NoError(t, err)
			require.Equal(t, tc.want, needs)
			require.Equal(t, "/rpc/needs_profile_completion", captured.path)
			require.Equal(t, "Bearer access-1", captured.auth)
			require.Equal(t, "anon-key", captured.apiKey)
		})
	}
}

func TestClient_RemoteError(t *testing.T) {
	srv, _ := setupServer(t, http.StatusInternalServerError, `{"message":"boom"}`)

	_, err := newClient(t, srv.URL).NeedsProfileCompletion(context.Background())
	require.ErrorIs(t, err, clienterrors.ErrUnexpectedReply)
	require.Contains(t, err.Error(), "status=500")
}

func TestClient_MalformedReply(t *testing.T) {
	srv, _ := setupServer(t, http.StatusOK, `"maybe"`)

	_, err := newClient(t, srv.URL).NeedsProfileCompletion(context.Background())
	require.ErrorIs(t, err, clienterrors.ErrUnexpectedReply)
}

func TestClient_CompleteProfile(t *testing.T) {
	srv, captured := setupServer(t, http.StatusOK, `{"completed":true}`)

	result, err := newClient(t, srv.URL+"/").CompleteProfile(context.Background(), profile.Fields{
		DisplayName: "John Doe",
		Username:    "johndoe",
	})
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.Equal(t, "/rpc/complete_profile", captured.path)
	require.Equal(t, "johndoe", captured.body["username"])
}

func TestNew_Validation(t *testing.T) {
	_, err := rpcclient.New("", oauth2.StaticTokenSource(&oauth2.Token{}))
	require.Error(t, err)

	_, err = rpcclient.New("http://localhost", nil)
	require.Error(t, err)
}
