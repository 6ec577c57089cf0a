// Package rpcclient calls profile procedures exposed over HTTP as
// POST {base}/rpc/{procedure} with a JSON body and a JSON reply.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	clienterrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/profile"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	needsCompletionProcedure = "needs_profile_completion"
	completeProfileProcedure = "complete_profile"
	maxReplyBytes            = 1 << 20
)

var _ profile.RPC = (*Client)(nil)

// Client is a profile.RPC over HTTP. Every call carries the bearer token
// from the token source.
type Client struct {
	baseURL    string
	apiKey     string
	tokens     oauth2.TokenSource
	httpClient *http.Client
}

// Option configures optional Client settings.
type Option func(*Client)

// WithAPIKey sets the public project key sent in the "apikey" header
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithHTTPClient sets the base transport; the bearer token is layered on top
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func New(baseURL string, tokens oauth2.TokenSource, options ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("[rpcclient.New] base URL is required")
	}
	if tokens == nil {
		return nil, errors.New("[rpcclient.New] token source is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// NeedsProfileCompletion calls the needs_profile_completion procedure, which
// replies with a bare JSON boolean.
func (c *Client) NeedsProfileCompletion(ctx context.Context) (bool, error) {
	var needs bool
	if err := c.call(ctx, needsCompletionProcedure, struct{}{}, &needs); err != nil {
		return false, errors.Wrap(err, "[Client.NeedsProfileCompletion]")
	}
	return needs, nil
}

func (c *Client) CompleteProfile(ctx context.Context, fields profile.Fields) (*profile.Result, error) {
	var result profile.Result
	if err := c.call(ctx, completeProfileProcedure, fields, &result); err != nil {
		return nil, errors.Wrap(err, "[Client.CompleteProfile]")
	}
	return &result, nil
}

func (c *Client) call(ctx context.Context, procedure string, args any, reply any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return errors.Wrap(err, "marshal arguments")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rpc/"+procedure, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	httpClient := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient), c.tokens)
	resp, err := httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return errors.Wrap(err, "read reply")
	}
	if resp.StatusCode >= 300 {
		return errors.Wrap(clienterrors.ErrUnexpectedReply, fmt.Sprintf("%s: status=%d body=%s", procedure, resp.StatusCode, strings.TrimSpace(string(raw))))
	}
	if err := json.Unmarshal(raw, reply); err != nil {
		return errors.Wrap(clienterrors.ErrUnexpectedReply, err.Error())
	}
	return nil
}
