package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/agentfleet/console/pkg/apikeys"
	"github.com/agentfleet/console/pkg/observability"
	"github.com/agentfleet/console/pkg/rbac"
	"github.com/agentfleet/console/pkg/session"
)

// Mode selects how interactive identities are established
type Mode string

const (
	// ModeProxy trusts identity headers set by an upstream auth proxy
	ModeProxy Mode = "proxy"
	// ModeOAuth establishes identity through the OIDC login flow
	ModeOAuth Mode = "oauth"
	// ModeBuiltin establishes identity through the console's own login
	ModeBuiltin Mode = "builtin"
	// ModeAnonymous grants every request the configured default role
	ModeAnonymous Mode = "anonymous"
)

// Valid reports whether m is a known deployment mode
func (m Mode) Valid() bool {
	switch m {
	case ModeProxy, ModeOAuth, ModeBuiltin, ModeAnonymous:
		return true
	}
	return false
}

// APIKeyHeader is the dedicated key header checked alongside the
// Authorization bearer scheme
const APIKeyHeader = "X-API-Key"

// SessionPayload is what the login handlers seal into the session cookie
type SessionPayload struct {
	User *User `json:"user"`
}

// ResolverConfig carries the deployment's identity settings
type ResolverConfig struct {
	Mode          Mode
	Headers       ProxyHeaders
	AdminGroups   []string
	EditorGroups  []string
	AnonymousRole rbac.Role
}

// Resolver turns an incoming request into a User. Sessions and key store
// are optional; a nil store disables API key resolution entirely.
type Resolver struct {
	cfg      ResolverConfig
	keys     apikeys.Store
	sessions *session.Codec
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewResolver creates an identity resolver
func NewResolver(cfg ResolverConfig, keys apikeys.Store, sessions *session.Codec, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	cfg.Headers = cfg.Headers.normalize()
	if !cfg.AnonymousRole.Valid() {
		cfg.AnonymousRole = rbac.RoleViewer
	}
	return &Resolver{
		cfg:      cfg,
		keys:     keys,
		sessions: sessions,
		logger:   logger.WithField("component", "identity-resolver"),
		metrics:  metrics,
	}
}

// Resolve determines the request identity. It never fails: every branch
// that cannot produce an authenticated user falls through, and the final
// fallback is an anonymous identity.
//
// Order: API key, anonymous mode, then proxy headers (proxy mode, with
// session fallback) or the browser session (oauth and builtin modes).
func (r *Resolver) Resolve(req *http.Request) *User {
	if user := r.resolveAPIKey(req); user != nil {
		r.countResolution(ProviderAPIKey)
		return user
	}

	if r.cfg.Mode == ModeAnonymous {
		r.countResolution(ProviderAnonymous)
		return Anonymous(r.cfg.AnonymousRole)
	}

	if r.cfg.Mode == ModeProxy {
		if user := userFromProxyHeaders(req, r.cfg.Headers, r.cfg.AdminGroups, r.cfg.EditorGroups); user != nil {
			r.countResolution(ProviderProxy)
			return user
		}
	}

	if user := r.resolveSession(req); user != nil {
		r.countResolution(user.Provider)
		return user
	}

	r.countResolution(ProviderAnonymous)
	return Anonymous(rbac.RoleViewer)
}

// apiKeyCandidate extracts a presented key from the Authorization bearer
// scheme or the X-API-Key header. Only values carrying the key prefix are
// treated as candidates; other bearer tokens belong to different schemes.
func apiKeyCandidate(req *http.Request) string {
	authz := req.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		if token := strings.TrimPrefix(authz, "Bearer "); apikeys.HasSecretPrefix(token) {
			return token
		}
	}
	if raw := req.Header.Get(APIKeyHeader); apikeys.HasSecretPrefix(raw) {
		return raw
	}
	return ""
}

func (r *Resolver) resolveAPIKey(req *http.Request) *User {
	if r.keys == nil {
		return nil
	}
	candidate := apiKeyCandidate(req)
	if candidate == "" {
		return nil
	}

	key, err := r.keys.FindByKey(req.Context(), candidate)
	if err != nil {
		if err != apikeys.ErrNotFound {
			r.logger.WithError(err).Warn("api key lookup failed")
		}
		r.countKeyLookup("miss")
		return nil
	}
	r.countKeyLookup("hit")

	// Last-use stamping is best effort and off the request path
	go func(keyID string) {
		defer observability.RecoverPanic(r.logger, "api key last-used update")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.keys.UpdateLastUsed(ctx, keyID); err != nil {
			r.logger.WithError(err).WithField("key_id", keyID).Warn("failed to update api key last-used time")
		}
	}(key.ID)

	return &User{
		ID:          key.UserID,
		Username:    key.UserID,
		DisplayName: key.Name,
		Role:        key.Role,
		Provider:    ProviderAPIKey,
	}
}

// PersistSession refreshes the browser session for a proxy-resolved
// identity so later requests the proxy does not annotate still resolve.
// Failures are logged and swallowed; the request identity stands either way.
func (r *Resolver) PersistSession(w http.ResponseWriter, user *User) {
	if r.sessions == nil || user == nil || user.Provider != ProviderProxy {
		return
	}
	if err := r.sessions.Write(w, SessionPayload{User: user}); err != nil {
		r.logger.WithError(err).Warn("failed to persist proxy identity session")
	}
}

func (r *Resolver) resolveSession(req *http.Request) *User {
	if r.sessions == nil {
		return nil
	}
	var payload SessionPayload
	if err := r.sessions.Read(req, &payload); err != nil {
		if err != session.ErrNoSession {
			r.logger.WithError(err).Debug("session rejected")
		}
		return nil
	}
	if payload.User == nil || payload.User.IsAnonymous() {
		return nil
	}
	return payload.User
}

func (r *Resolver) countResolution(provider Provider) {
	if r.metrics != nil {
		r.metrics.IdentityResolutionsTotal.WithLabelValues(string(provider)).Inc()
	}
}

func (r *Resolver) countKeyLookup(outcome string) {
	if r.metrics != nil {
		r.metrics.APIKeyLookupsTotal.WithLabelValues(outcome).Inc()
	}
}
