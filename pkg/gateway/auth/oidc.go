package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"golang.org/x/oauth2"
)

var ErrInvalidToken = errors.New("invalid bearer token")

// OIDCAuthenticator checks bearer tokens against the issuer's userinfo
// endpoint. The token is accepted when the issuer returns claims with a
// subject.
type OIDCAuthenticator struct {
	config      *oauth2.Config
	issuer      string
	userInfoURL string
	httpClient  *http.Client
}

func NewOIDCAuthenticator(issuer, clientID, clientSecret string) (*OIDCAuthenticator, error) {
	if issuer == "" || clientID == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}
	issuer = strings.TrimRight(issuer, "/")

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  issuer + "/authorize",
			TokenURL: issuer + "/token",
		},
		Scopes: []string{"openid", "profile", "email"},
	}

	return &OIDCAuthenticator{
		config:      config,
		issuer:      issuer,
		userInfoURL: issuer + "/userinfo",
	}, nil
}

// WithHTTPClient sets the base transport used for userinfo calls.
func (a *OIDCAuthenticator) WithHTTPClient(client *http.Client) *OIDCAuthenticator {
	a.httpClient = client
	return a
}

func (a *OIDCAuthenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if a.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
	}
	client := a.config.Client(ctx, &oauth2.Token{AccessToken: token, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Log.WithField("status", resp.StatusCode).Debug("Issuer rejected bearer token")
		return nil, ErrInvalidToken
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
