// internal/common/auth/keycloak.go
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// KeycloakClient obtains service tokens from a Keycloak realm with the
// client credentials grant.
type KeycloakClient struct {
	cfg        clientcredentials.Config
	httpClient *http.Client

	mu    sync.Mutex
	token *oauth2.Token
}

// TokenURL is the realm's OpenID Connect token endpoint.
func TokenURL(baseURL, realm string) string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimSuffix(baseURL, "/"), realm)
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		cfg: clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     TokenURL(baseURL, realm),
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Token returns the cached access token, fetching a new one shortly before
// it expires.
func (k *KeycloakClient) Token(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.token.Valid() {
		return k.token.AccessToken, nil
	}

	tok, err := k.cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, k.httpClient))
	if err != nil {
		return "", fmt.Errorf("%w: keycloak token request failed: %v", ErrNoCredential, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: keycloak returned an empty access token", ErrNoCredential)
	}

	k.token = tok
	return tok.AccessToken, nil
}

// Invalidate drops the cached token.
func (k *KeycloakClient) Invalidate() {
	k.mu.Lock()
	k.token = nil
	k.mu.Unlock()
}
