package oidc

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientConfig describes a machine-to-machine client registered with the issuer
type ClientConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	Audience     string
	Scopes       []string
	// TokenURL overrides the default <issuer>/oauth/token
	TokenURL string
}

// Client obtains access tokens with the OAuth2 client credentials grant.
// It only requests tokens from the issuer; it never mints them.
type Client struct {
	config *clientcredentials.Config
}

// NewClient creates a new client credentials client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		if cfg.Issuer == "" {
			return nil, fmt.Errorf("issuer or token URL is required")
		}
		tokenURL = strings.TrimRight(cfg.Issuer, "/") + "/oauth/token"
	}

	params := url.Values{}
	if cfg.Audience != "" {
		params.Set("audience", cfg.Audience)
	}

	return &Client{config: &clientcredentials.Config{
		ClientID:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		TokenURL:       tokenURL,
		Scopes:         cfg.Scopes,
		EndpointParams: params,
	}}, nil
}

// TokenURL returns the endpoint tokens are requested from
func (c *Client) TokenURL() string {
	return c.config.TokenURL
}

// FetchToken requests a new access token
func (c *Client) FetchToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := c.config.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token: %w", err)
	}
	return token, nil
}

// DefaultJWKSURL returns the conventional JWKS location for issuer
func DefaultJWKSURL(issuer string) string {
	if issuer == "" {
		return ""
	}
	return strings.TrimRight(issuer, "/") + "/.well-known/jwks.json"
}
