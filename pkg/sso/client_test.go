package sso

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manualConfig() Config {
	return Config{
		ClientID:     "console",
		ClientSecret: "secret",
		RedirectURL:  "https://console.example.com/auth/callback",
		AuthURL:      "https://idp.example.com/authorize",
		TokenURL:     "https://idp.example.com/token",
		UserInfoURL:  "https://idp.example.com/userinfo",
	}
}

func TestNewClientValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing client id", func(c *Config) { c.ClientID = "" }, "client_id"},
		{"missing client secret", func(c *Config) { c.ClientSecret = "" }, "client_secret"},
		{"missing redirect url", func(c *Config) { c.RedirectURL = "" }, "redirect_url"},
		{"missing userinfo url", func(c *Config) { c.UserInfoURL = "" }, "userinfo_url"},
		{"no endpoints at all", func(c *Config) {
			c.AuthURL = ""
			c.TokenURL = ""
		}, "issuer_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := manualConfig()
			tt.mutate(&cfg)
			_, err := NewClient(ctx, cfg)
			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNewClientManualEndpoints(t *testing.T) {
	client, err := NewClient(context.Background(), manualConfig())
	require.NoError(t, err)
	assert.Nil(t, client.verifier)
	assert.Equal(t, "https://idp.example.com/userinfo", client.userInfoURL)
}

func TestAuthCodeURLCarriesPKCE(t *testing.T) {
	client, err := NewClient(context.Background(), manualConfig())
	require.NoError(t, err)

	verifier := client.GenerateVerifier()
	authURL := client.AuthCodeURL("state-123", verifier)

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(authURL, "https://idp.example.com/authorize"))

	query := parsed.Query()
	assert.Equal(t, "state-123", query.Get("state"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.NotEmpty(t, query.Get("code_challenge"))
	assert.NotEqual(t, verifier, query.Get("code_challenge"))
	assert.Equal(t, "console", query.Get("client_id"))
	assert.Contains(t, query.Get("scope"), "openid")
}

func TestGenerateVerifierUnique(t *testing.T) {
	client, err := NewClient(context.Background(), manualConfig())
	require.NoError(t, err)
	assert.NotEqual(t, client.GenerateVerifier(), client.GenerateVerifier())
}
