// Package api exposes the console's HTTP surface: identity and workspace
// queries, API key management, the login flow, and operational endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/agentfleet/console/pkg/apikeys"
	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/httputil"
	"github.com/agentfleet/console/pkg/middleware"
	"github.com/agentfleet/console/pkg/observability"
	"github.com/agentfleet/console/pkg/rbac"
	"github.com/agentfleet/console/pkg/session"
	"github.com/agentfleet/console/pkg/sso"
	"github.com/agentfleet/console/pkg/workspace"
)

// Server wires handlers, guard and dependencies into one router
type Server struct {
	router     *mux.Router
	guard      *middleware.Guard
	authorizer *workspace.Authorizer
	keys       apikeys.Store
	keysCfg    KeyPolicy
	sessions   *session.Codec
	sso        *sso.Client
	ssoCfg     SSOPolicy
	logger     *observability.Logger
	metrics    *observability.Metrics
	registry   *prometheus.Registry
	tracing    bool
}

// KeyPolicy carries the API key issuance rules enforced by the handlers
type KeyPolicy struct {
	Enabled bool
	// DefaultExpiry is applied when a creation request names none.
	// Zero means keys default to non-expiring.
	DefaultExpiry time.Duration
}

// SSOPolicy carries login flow settings
type SSOPolicy struct {
	// PostLoginRedirect is where the callback sends the browser
	PostLoginRedirect string
	// Groups to global role mapping applied to the claim set
	AdminGroups  []string
	EditorGroups []string
}

// Option configures a Server
type Option func(*Server)

// WithKeyStore enables the API key endpoints
func WithKeyStore(store apikeys.Store, policy KeyPolicy) Option {
	return func(s *Server) {
		s.keys = store
		s.keysCfg = policy
	}
}

// WithSSO enables the login endpoints. The session codec is required for
// the flow's state cookie and the final session.
func WithSSO(client *sso.Client, sessions *session.Codec, policy SSOPolicy) Option {
	return func(s *Server) {
		s.sso = client
		s.sessions = sessions
		s.ssoCfg = policy
	}
}

// WithSessions enables session logout without the full SSO flow
func WithSessions(sessions *session.Codec) Option {
	return func(s *Server) {
		s.sessions = sessions
	}
}

// WithMetricsRegistry exposes /metrics from the given registry
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithTracing wraps the router in otelhttp instrumentation
func WithTracing() Option {
	return func(s *Server) {
		s.tracing = true
	}
}

// NewServer creates the console API server
func NewServer(guard *middleware.Guard, authorizer *workspace.Authorizer, logger *observability.Logger, metrics *observability.Metrics, opts ...Option) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		guard:      guard,
		authorizer: authorizer,
		logger:     logger.WithField("component", "api"),
		metrics:    metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	api.HandleFunc("/workspaces", s.handleListWorkspaces).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{name}",
		s.guard.RequireWorkspaceRole("name", workspace.RoleViewer, s.handleGetWorkspace)).Methods(http.MethodGet)
	api.HandleFunc("/workspaces/{name}/access",
		s.handleWorkspaceAccess).Methods(http.MethodGet)

	if s.keys != nil && s.keysCfg.Enabled {
		api.HandleFunc("/apikeys",
			s.guard.RequirePermission(rbac.PermissionAPIKeysManage, s.handleCreateKey)).Methods(http.MethodPost)
		api.HandleFunc("/apikeys",
			s.guard.RequirePermission(rbac.PermissionAPIKeysManage, s.handleListKeys)).Methods(http.MethodGet)
		api.HandleFunc("/apikeys/{id}",
			s.guard.RequirePermission(rbac.PermissionAPIKeysManage, s.handleDeleteKey)).Methods(http.MethodDelete)
	}

	if s.sso != nil {
		s.router.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodGet)
		s.router.HandleFunc("/auth/callback", s.handleCallback).Methods(http.MethodGet)
	}
	if s.sessions != nil {
		s.router.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	}
}

// Handler returns the complete middleware chain around the router
func (s *Server) Handler() http.Handler {
	var handler http.Handler = middleware.RequestID(s.guard.WithUser(s.router))
	if s.metrics != nil {
		handler = observability.HTTPMetricsMiddleware(s.metrics)(handler)
	}
	if s.tracing {
		handler = otelhttp.NewHandler(handler, "console-api")
	}
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

// currentUser is a convenience for handlers behind WithUser
func currentUser(r *http.Request) *auth.User {
	return middleware.UserFrom(r.Context())
}
