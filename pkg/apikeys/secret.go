package apikeys

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	// SecretPrefix identifies agentfleet console API keys
	SecretPrefix = "afk_"
	// secretLength is the number of random bytes behind each key
	secretLength = 32
	// displayPrefixLen is how much of the encoded secret listings show
	displayPrefixLen = 8
)

// GenerateSecret creates a new key secret and its display prefix.
// Format: afk_<base64url(32 random bytes)>.
func GenerateSecret() (secret, displayPrefix string, err error) {
	randomBytes := make([]byte, secretLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	secret = SecretPrefix + encoded
	displayPrefix = SecretPrefix + encoded[:displayPrefixLen]
	return secret, displayPrefix, nil
}

// HasSecretPrefix reports whether candidate looks like a console API key.
// Candidates without the prefix are rejected before any hash comparison.
func HasSecretPrefix(candidate string) bool {
	return strings.HasPrefix(candidate, SecretPrefix) && len(candidate) > len(SecretPrefix)
}

// DisplayPrefix derives the listing fragment from a full secret
func DisplayPrefix(secret string) string {
	if !strings.HasPrefix(secret, SecretPrefix) {
		return ""
	}
	encoded := strings.TrimPrefix(secret, SecretPrefix)
	if len(encoded) >= displayPrefixLen {
		return SecretPrefix + encoded[:displayPrefixLen]
	}
	return secret
}
