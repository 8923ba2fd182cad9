// Package session implements the console's browser session cookie.
//
// Sessions are self-contained: the payload is serialized to JSON, sealed
// with AES-GCM under a key derived from the configured secret, and stored
// client-side in a cookie. There is no server-side session table; expiry
// is enforced from the sealed creation timestamp on every read.
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultCookieName is the session cookie name when none is configured
const DefaultCookieName = "console_session"

var (
	// ErrNoSession indicates the request carried no session cookie
	ErrNoSession = errors.New("no session")
	// ErrInvalidSession indicates the cookie failed to decrypt or decode
	ErrInvalidSession = errors.New("invalid session")
	// ErrExpired indicates the session is past its TTL
	ErrExpired = errors.New("session expired")
)

// envelope wraps the caller's payload with the creation timestamp the TTL
// check runs against
type envelope struct {
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Codec seals and opens session cookies. It is safe for concurrent use.
type Codec struct {
	aead       cipher.AEAD
	cookieName string
	ttl        time.Duration
	secure     bool

	now func() time.Time
}

// CodecOption configures a Codec
type CodecOption func(*Codec)

// WithCookieName overrides the session cookie name
func WithCookieName(name string) CodecOption {
	return func(c *Codec) {
		if name != "" {
			c.cookieName = name
		}
	}
}

// WithSecureCookies marks issued cookies Secure for TLS-only transport
func WithSecureCookies(secure bool) CodecOption {
	return func(c *Codec) {
		c.secure = secure
	}
}

// NewCodec creates a session codec. The secret may be any non-empty
// string; a 256-bit AES key is derived from it.
func NewCodec(secret string, ttl time.Duration, opts ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("session secret must not be empty")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}

	c := &Codec{
		aead:       aead,
		cookieName: DefaultCookieName,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CookieName returns the name of the cookie the codec reads and writes
func (c *Codec) CookieName() string {
	return c.cookieName
}

// SecureCookies reports whether issued cookies are marked Secure
func (c *Codec) SecureCookies() bool {
	return c.secure
}

// Seal encrypts v into an opaque cookie-safe string
func (c *Codec) Seal(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session payload: %w", err)
	}
	plaintext, err := json.Marshal(envelope{Data: data, CreatedAt: c.now().UTC()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal session envelope: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value into v, enforcing the TTL
func (c *Codec) Open(value string, v interface{}) error {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return ErrInvalidSession
	}
	if len(raw) < c.aead.NonceSize() {
		return ErrInvalidSession
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return ErrInvalidSession
	}

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		return ErrInvalidSession
	}
	if c.now().Sub(env.CreatedAt) > c.ttl {
		return ErrExpired
	}
	return json.Unmarshal(env.Data, v)
}

// Write seals v into a fresh session cookie on the response
func (c *Codec) Write(w http.ResponseWriter, v interface{}) error {
	value, err := c.Seal(v)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read opens the request's session cookie into v. Returns ErrNoSession
// when the cookie is absent, ErrExpired past the TTL, and
// ErrInvalidSession for anything that fails to decrypt.
func (c *Codec) Read(r *http.Request, v interface{}) error {
	cookie, err := r.Cookie(c.cookieName)
	if err != nil {
		return ErrNoSession
	}
	return c.Open(cookie.Value, v)
}

// Destroy expires the session cookie on the response
func (c *Codec) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
