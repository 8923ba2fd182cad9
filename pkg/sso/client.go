package sso

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Client drives the authorization-code-with-PKCE login flow against one
// OIDC provider
type Client struct {
	cfg          Config
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
	userInfoURL  string
}

// NewClient validates the provider configuration and resolves its
// endpoints, preferring OIDC discovery against the issuer and falling
// back to manually configured endpoints. A provider with neither is
// rejected.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.normalize()

	if cfg.ClientID == "" {
		return nil, &ConfigError{Field: "client_id", Reason: "must be set"}
	}
	if cfg.ClientSecret == "" {
		return nil, &ConfigError{Field: "client_secret", Reason: "must be set"}
	}
	if cfg.RedirectURL == "" {
		return nil, &ConfigError{Field: "redirect_url", Reason: "must be set"}
	}

	client := &Client{cfg: cfg}

	switch {
	case cfg.IssuerURL != "":
		provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery failed for issuer %s: %w", cfg.IssuerURL, err)
		}
		client.oauth2Config = oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       cfg.Scopes,
		}
		client.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
		var extra struct {
			UserInfoURL string `json:"userinfo_endpoint"`
		}
		if err := provider.Claims(&extra); err == nil {
			client.userInfoURL = extra.UserInfoURL
		}
	case cfg.AuthURL != "" && cfg.TokenURL != "":
		client.oauth2Config = oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: cfg.Scopes,
		}
		if cfg.UserInfoURL == "" {
			return nil, &ConfigError{Field: "userinfo_url", Reason: "required when endpoints are configured manually"}
		}
		client.userInfoURL = cfg.UserInfoURL
	default:
		return nil, &ConfigError{Field: "issuer_url", Reason: "issuer or manual auth/token endpoints must be set"}
	}

	return client, nil
}

// GenerateVerifier creates a fresh PKCE code verifier for one login attempt
func (c *Client) GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// AuthCodeURL builds the provider redirect carrying the state and the PKCE
// challenge derived from verifier
func (c *Client) AuthCodeURL(state, verifier string) string {
	return c.oauth2Config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

// Exchange redeems the authorization code and extracts the identity.
// With discovered endpoints the ID token is verified and its claims used;
// with manual endpoints claims come from the userinfo endpoint.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*Identity, error) {
	token, err := c.oauth2Config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	var claims map[string]interface{}
	if c.verifier != nil {
		rawIDToken, ok := token.Extra("id_token").(string)
		if !ok {
			return nil, errors.New("token response missing id_token")
		}
		idToken, err := c.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("id token verification failed: %w", err)
		}
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("failed to parse id token claims: %w", err)
		}
	} else {
		claims, err = c.fetchUserInfo(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	identity := identityFromClaims(claims, c.cfg)
	if identity.Username == "" {
		return nil, errors.New("provider returned no usable identity claims")
	}
	return &identity, nil
}

func (c *Client) fetchUserInfo(ctx context.Context, token *oauth2.Token) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo response: %w", err)
	}
	return claims, nil
}
