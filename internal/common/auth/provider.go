// Package auth supplies bearer credentials for calls to the portal backend.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"geoincra-portal/internal/common/config"
)

// ErrNoCredential means no valid bearer token is available.
var ErrNoCredential = errors.New("CREDENTIAL_MISSING")

// CredentialProvider returns the bearer token for the current caller.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token, typically injected from the environment.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", ErrNoCredential
	}
	return string(s), nil
}

// ProviderFunc adapts a function to CredentialProvider.
type ProviderFunc func(ctx context.Context) (string, error)

func (f ProviderFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// PortalLogin authenticates against the portal's own login endpoint and
// caches the returned access token until Invalidate is called.
type PortalLogin struct {
	baseURL    string
	email      string
	password   string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func NewPortalLogin(baseURL, email, password string, timeout time.Duration) *PortalLogin {
	return &PortalLogin{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		email:      email,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *PortalLogin) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	body, err := json.Marshal(loginRequest{Email: p.email, Password: p.password})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCredential, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create login request: %v", ErrNoCredential, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login request failed: %v", ErrNoCredential, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: login failed with status %d: %s", ErrNoCredential, resp.StatusCode, string(data))
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil || lr.AccessToken == "" {
		return "", fmt.Errorf("%w: login response carried no access token", ErrNoCredential)
	}

	p.token = lr.AccessToken
	return p.token, nil
}

// Invalidate forgets the cached token so the next call logs in again.
func (p *PortalLogin) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.mu.Unlock()
}

// NewProvider builds the provider selected by cfg.Auth.Mode.
func NewProvider(cfg *config.Config) (CredentialProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeStatic, "":
		return StaticToken(cfg.Auth.Token), nil
	case config.AuthModeKeycloak:
		kc := cfg.Auth.Keycloak
		return NewKeycloakClient(kc.URL, kc.Realm, kc.ClientID, kc.ClientSecret), nil
	case config.AuthModeLogin:
		return NewPortalLogin(cfg.Portal.BaseURL, cfg.Auth.Login.Email, cfg.Auth.Login.Password,
			config.GetDuration(cfg.Portal.Timeout)), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
