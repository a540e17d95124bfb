package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mazadapp/mazad/internal/domain"
)

const (
	authEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	tokenEndpoint    = "https://oauth2.googleapis.com/token"
	userinfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Client exchanges OAuth authorization codes with Google and fetches the
// authenticated user's profile.
type Client struct {
	clientID     string
	clientSecret string
	redirectURL  string
	httpClient   *http.Client

	// Endpoint overrides for tests.
	tokenURL    string
	userinfoURL string
}

// Profile is the subset of the OpenID userinfo document we care about.
type Profile struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewClient creates a new Google OAuth client.
func NewClient(clientID, clientSecret, redirectURL string) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		tokenURL:    tokenEndpoint,
		userinfoURL: userinfoEndpoint,
	}
}

// AuthURL returns the consent-screen URL the client should be redirected to.
// state is echoed back by Google and must be verified on return.
func (c *Client) AuthURL(state string) string {
	params := url.Values{}
	params.Set("client_id", c.clientID)
	params.Set("redirect_uri", c.redirectURL)
	params.Set("response_type", "code")
	params.Set("scope", "openid email profile")
	params.Set("state", state)
	return authEndpoint + "?" + params.Encode()
}

// Exchange trades an authorization code for the user's profile.
func (c *Client) Exchange(ctx context.Context, code string) (Profile, error) {
	token, err := c.fetchToken(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("google: exchange code: %w", err)
	}

	profile, err := c.fetchProfile(ctx, token)
	if err != nil {
		return Profile{}, fmt.Errorf("google: fetch profile: %w", err)
	}
	if profile.Sub == "" || profile.Email == "" {
		return Profile{}, fmt.Errorf("google: userinfo missing subject or email: %w", domain.ErrGateway)
	}

	return profile, nil
}

func (c *Client) fetchToken(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("redirect_uri", c.redirectURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w: %w", err, domain.ErrGateway)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint HTTP %d: %s: %w", resp.StatusCode, body, domain.ErrGateway)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token: %w", domain.ErrGateway)
	}

	return token.AccessToken, nil
}

func (c *Client) fetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("http request: %w: %w", err, domain.ErrGateway)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Profile{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("userinfo endpoint HTTP %d: %w", resp.StatusCode, domain.ErrGateway)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Profile{}, fmt.Errorf("decode userinfo: %w", err)
	}

	return profile, nil
}
