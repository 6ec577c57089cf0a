// Package oidcclient talks to an OpenID Connect identity platform. It keeps the
// current session in memory and in a sessions.Repo, rotates tokens with the
// refresh_token grant and publishes identity events to subscribers.
package oidcclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/identity"
	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var (
	_ identity.Platform  = (*Client)(nil)
	_ oauth2.TokenSource = (*Client)(nil)
)

// Client is an identity.Platform backed by an OIDC provider.
type Client struct {
	provider      *oidc.Provider
	oauth         *oauth2.Config
	revocationURL string
	apiKey        string
	repo          sessions.Repo
	httpClient    *http.Client
	nowTime       func() time.Time

	mu        sync.RWMutex
	session   *sessions.Session
	restored  bool
	listeners map[string]identity.Listener
}

// Option configures optional Client settings.
type Option func(*Client)

// WithHTTPClient sets the client used for discovery, token and revocation calls
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithAPIKey sets the public project key sent as the "apikey" parameter
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Client) {
		c.nowTime = nowFunc
	}
}

// New runs OIDC discovery against issuerURL and returns a ready client.
// repo holds the session between runs.
func New(ctx context.Context, issuerURL, clientID string, repo sessions.Repo, options ...Option) (*Client, error) {
	if repo == nil {
		return nil, errors.New("[oidcclient.New] session repo is required")
	}
	if clientID == "" {
		return nil, errors.New("[oidcclient.New] client ID is required")
	}

	c := &Client{
		repo:       repo,
		httpClient: http.DefaultClient,
		nowTime:    time.Now,
		listeners:  make(map[string]identity.Listener),
	}
	for _, opt := range options {
		opt(c)
	}

	provider, err := oidc.NewProvider(oidc.ClientContext(ctx, c.httpClient), issuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidcclient.New] failed to create OIDC provider")
	}

	var extra struct {
		RevocationEndpoint string `json:"revocation_endpoint"`
	}
	if err := provider.Claims(&extra); err != nil {
		return nil, errors.Wrap(err, "[oidcclient.New] provider.Claims")
	}

	c.provider = provider
	c.revocationURL = extra.RevocationEndpoint
	c.oauth = &oauth2.Config{
		ClientID: clientID,
		Endpoint: provider.Endpoint(),
		Scopes:   []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
	}
	return c, nil
}

// CurrentSession returns the cached session, restoring it from the repo on
// first use. An expired session with a refresh token is rotated first.
func (c *Client) CurrentSession(ctx context.Context) (*sessions.Session, error) {
	if err := c.restore(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	session := c.session.Clone()
	c.mu.RUnlock()

	if session == nil || !session.Expired(c.nowTime()) {
		return session, nil
	}
	if session.RefreshToken == "" {
		return nil, clienterrors.ErrSessionExpired
	}
	return c.RefreshSession(ctx)
}

// SignInURL builds the platform authorize URL for provider.
func (c *Client) SignInURL(ctx context.Context, provider, redirectTarget string) (string, error) {
	if strings.TrimSpace(provider) == "" {
		return "", errors.New("[Client.SignInURL] provider is required")
	}
	if _, err := url.Parse(redirectTarget); err != nil || redirectTarget == "" {
		return "", errors.Errorf("[Client.SignInURL] invalid redirect target %q", redirectTarget)
	}

	cfg := *c.oauth
	cfg.RedirectURL = redirectTarget
	params := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("provider", provider),
		oauth2.SetAuthURLParam("redirect_to", redirectTarget),
	}
	if c.apiKey != "" {
		params = append(params, oauth2.SetAuthURLParam("apikey", c.apiKey))
	}
	return cfg.AuthCodeURL(uuid.New().String(), params...), nil
}

// CompleteSignIn installs a token pair delivered by the sign-in redirect and
// publishes SIGNED_IN.
func (c *Client) CompleteSignIn(ctx context.Context, accessToken, refreshToken string) (*sessions.Session, error) {
	if accessToken == "" {
		return nil, clienterrors.ErrInvalidToken
	}

	session, err := sessions.FromTokens(accessToken, refreshToken)
	if err != nil {
		// Opaque access tokens carry no claims; ask the platform who they belong to
		session, err = c.sessionFromUserInfo(ctx, accessToken, refreshToken)
		if err != nil {
			return nil, errors.Wrap(err, "[Client.CompleteSignIn] resolve identity")
		}
	}

	c.install(session)
	c.emit(identity.EventSignedIn, session)
	return session.Clone(), nil
}

// RefreshSession rotates the current token pair with the refresh_token grant
// and publishes TOKEN_REFRESHED.
func (c *Client) RefreshSession(ctx context.Context) (*sessions.Session, error) {
	if err := c.restore(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	current := c.session.Clone()
	c.mu.RUnlock()

	if current == nil {
		return nil, clienterrors.ErrNoSession
	}
	if current.RefreshToken == "" {
		return nil, clienterrors.ErrNoRefreshToken
	}

	ts := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	token, err := ts.Token()
	if err != nil {
		return nil, errors.Wrap(err, "[Client.RefreshSession] refresh_token grant")
	}

	session, err := sessions.FromTokens(token.AccessToken, token.RefreshToken)
	if err != nil {
		session = &sessions.Session{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			User:         current.User,
		}
	}
	session.TokenType = token.TokenType
	if !token.Expiry.IsZero() {
		session.ExpiresAt = token.Expiry
	}

	c.install(session)
	c.emit(identity.EventTokenRefreshed, session)
	return session.Clone(), nil
}

// SignOut revokes the current tokens when the provider supports revocation,
// forgets the session and publishes SIGNED_OUT. Revocation is best effort.
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.restore(); err != nil {
		return err
	}

	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	if session != nil && c.revocationURL != "" {
		if session.RefreshToken != "" {
			c.revoke(ctx, session.RefreshToken, "refresh_token")
		}
		if session.AccessToken != "" {
			c.revoke(ctx, session.AccessToken, "access_token")
		}
	}

	if err := c.repo.Clear(); err != nil {
		return errors.Wrap(err, "[Client.SignOut] repo.Clear")
	}
	c.emit(identity.EventSignedOut, nil)
	return nil
}

// Subscribe registers listener for identity events.
func (c *Client) Subscribe(listener identity.Listener) func() {
	id := uuid.New().String()

	c.mu.Lock()
	c.listeners[id] = listener
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Token implements oauth2.TokenSource with the current access token.
// It never refreshes; callers refresh through RefreshSession.
func (c *Client) Token() (*oauth2.Token, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil, clienterrors.ErrNoSession
	}
	return c.session.Token(), nil
}

// StartAutoRefresh checks the session every interval and rotates it once it is
// within leeway of expiring. It returns when ctx is done.
func (c *Client) StartAutoRefresh(ctx context.Context, interval, leeway time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.RLock()
			session := c.session
			due := session != nil && session.RefreshToken != "" && session.Expired(c.nowTime().Add(leeway))
			c.mu.RUnlock()

			if !due {
				continue
			}
			if _, err := c.RefreshSession(ctx); err != nil {
				log.Err(err).Str("sub", session.Subject()).Msg("Auto refresh failed")
			}
		}
	}
}

func (c *Client) restore() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.restored {
		return nil
	}

	session, err := c.repo.Load()
	if err != nil {
		return errors.Wrap(err, "[Client.restore] repo.Load")
	}
	if c.session == nil {
		c.session = session
	}
	c.restored = true
	return nil
}

func (c *Client) install(session *sessions.Session) {
	c.mu.Lock()
	c.session = session.Clone()
	c.restored = true
	c.mu.Unlock()

	if err := c.repo.Save(session); err != nil {
		log.Err(err).Str("sub", session.Subject()).Msg("Failed to persist session")
	}
}

func (c *Client) emit(kind identity.EventKind, session *sessions.Session) {
	c.mu.RLock()
	listeners := make([]identity.Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.RUnlock()

	log.Debug().Str("event", string(kind)).Str("sub", session.Subject()).Int("listeners", len(listeners)).Msg("Identity event")
	for _, l := range listeners {
		l(identity.Event{Kind: kind, Session: session.Clone()})
	}
}

func (c *Client) sessionFromUserInfo(ctx context.Context, accessToken, refreshToken string) (*sessions.Session, error) {
	token := &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "bearer"}
	info, err := c.provider.UserInfo(c.oauthContext(ctx), oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.sessionFromUserInfo] provider.UserInfo")
	}
	if info.Subject == "" {
		return nil, clienterrors.ErrMissingSubject
	}

	var claims struct {
		Name string `json:"name"`
	}
	_ = info.Claims(&claims)

	return &sessions.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		User: &sessions.User{
			ID:    info.Subject,
			Email: info.Email,
			Name:  claims.Name,
		},
	}, nil
}

func (c *Client) revoke(ctx context.Context, token, tokenTypeHint string) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", tokenTypeHint)
	form.Set("client_id", c.oauth.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.revocationURL, strings.NewReader(form.Encode()))
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to build revocation request")
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to revoke token")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("token_type", tokenTypeHint).Msg("Token revocation rejected")
	}
}

func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
