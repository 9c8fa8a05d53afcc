// Package twitter implements the X (Twitter) API boundary: OAuth2 code
// exchange, profile lookup, and the follower check behind the
// FollowerVerifier interface.
package twitter

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/basemint/whitelist-backend/interfaces"
)

const defaultBaseURL = "https://api.twitter.com"
const authorizeURL = "https://twitter.com/i/oauth2/authorize"

// oauthScopes are the scopes requested during authorization.
const oauthScopes = "tweet.read users.read follows.read"

// ClientConfig carries the X API credentials.
type ClientConfig struct {
	ClientID     string
	ClientSecret string

	// BearerToken is the app-only token used for follow lookups. Only
	// needed when the real follower check is enabled.
	BearerToken string

	// BaseURL overrides the API base, used in tests.
	BaseURL string

	// Timeout bounds every outbound request. Defaults to 10s.
	Timeout time.Duration
}

// Client talks to the X API v2. Every call is bounded by the configured
// timeout; failures surface wrapped in interfaces.ErrUpstream so the
// orchestrator can report them as retryable.
type Client struct {
	cfg        ClientConfig
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates an X API client.
func NewClient(cfg ClientConfig, log *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		cfg:        cfg,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// AuthorizeURL builds the OAuth2 authorization URL the client is redirected
// to. The state parameter is random but not tracked server-side; CSRF
// protection for the OAuth dance belongs to the provider boundary, not this
// service.
func (c *Client) AuthorizeURL(redirectURI string) (string, error) {
	if c.cfg.ClientID == "" {
		return "", interfaces.ErrNoOAuthCredentials
	}

	state := make([]byte, 16)
	if _, err := rand.Read(state); err != nil {
		return "", err
	}

	u, err := url.Parse(authorizeURL)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", oauthScopes)
	q.Set("state", hex.EncodeToString(state))
	q.Set("code_challenge", "challenge")
	q.Set("code_challenge_method", "plain")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code, redirectURI string) (string, error) {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", interfaces.ErrNoOAuthCredentials
	}

	form := url.Values{
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"client_id":     {c.cfg.ClientID},
		"redirect_uri":  {redirectURI},
		"code_verifier": {"challenge"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/2/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.ClientSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, &tokenResp); err != nil {
		return "", err
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token in response", interfaces.ErrUpstream)
	}

	return tokenResp.AccessToken, nil
}

// Profile fetches the authenticated user's id and handle.
func (c *Client) Profile(ctx context.Context, accessToken string) (interfaces.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/users/me", nil)
	if err != nil {
		return interfaces.Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var userResp struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := c.do(req, &userResp); err != nil {
		return interfaces.Profile{}, err
	}
	if userResp.Data.ID == "" {
		return interfaces.Profile{}, fmt.Errorf("%w: empty user in response", interfaces.ErrUpstream)
	}

	return interfaces.Profile{
		ID:     interfaces.IdentityID(userResp.Data.ID),
		Handle: userResp.Data.Username,
	}, nil
}

// userIDByHandle resolves a handle to a user id using the app bearer token.
func (c *Client) userIDByHandle(ctx context.Context, handle string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/2/users/by/username/"+url.PathEscape(handle), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	if resp.Data.ID == "" {
		return "", fmt.Errorf("%w: unknown user %s", interfaces.ErrUpstream, handle)
	}
	return resp.Data.ID, nil
}

// following fetches the first page of accounts the user follows.
func (c *Client) following(ctx context.Context, userID interfaces.IdentityID) ([]string, error) {
	u := fmt.Sprintf("%s/2/users/%s/following?max_results=1000", c.baseURL, url.PathEscape(string(userID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.BearerToken)

	var resp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Data))
	for _, user := range resp.Data {
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", interfaces.ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("X API request failed", "url", req.URL.Path, "status", resp.StatusCode)
		return fmt.Errorf("%w: %s returned status %d", interfaces.ErrUpstream, req.URL.Path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", interfaces.ErrUpstream, err)
	}
	return nil
}
