package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/observability"
	"github.com/agentfleet/console/pkg/rbac"
	"github.com/agentfleet/console/pkg/session"
	"github.com/agentfleet/console/pkg/sso"
)

// API key store backends
const (
	KeyStoreMemory = "memory"
	KeyStoreFile   = "file"
)

// Config holds all console configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Session       SessionConfig
	APIKeys       APIKeysConfig
	OAuth         sso.Config
	Cluster       ClusterConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ListenAddr joins host and port for http.Server
func (c ServerConfig) ListenAddr() string {
	return c.Host + ":" + c.Port
}

// AuthConfig holds identity resolution settings
type AuthConfig struct {
	Mode          auth.Mode
	Headers       auth.ProxyHeaders
	AdminGroups   []string
	EditorGroups  []string
	AnonymousRole rbac.Role
}

// SessionConfig holds browser session settings
type SessionConfig struct {
	CookieName string
	Secret     string
	TTL        time.Duration
	Secure     bool
}

// APIKeysConfig holds API key subsystem settings
type APIKeysConfig struct {
	Enabled       bool
	StoreType     string
	FilePath      string
	MaxPerUser    int
	DefaultExpiry time.Duration
	SweepSchedule string
}

// ClusterConfig selects the workspace source: the cluster API when
// APIBaseURL is set, a local manifest otherwise
type ClusterConfig struct {
	APIBaseURL   string
	APIToken     string
	ManifestPath string
	CacheSize    int
	CacheTTL     time.Duration
}

// ObservabilityConfig holds logging, metrics and tracing settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Auth:          loadAuthConfig(),
		Session:       loadSessionConfig(),
		APIKeys:       loadAPIKeysConfig(),
		OAuth:         loadOAuthConfig(),
		Cluster:       loadClusterConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("CONSOLE_HOST", "0.0.0.0"),
		Port:            getEnv("CONSOLE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("CONSOLE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("CONSOLE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("CONSOLE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("CONSOLE_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		Mode: auth.Mode(getEnv("CONSOLE_AUTH_MODE", string(auth.ModeProxy))),
		Headers: auth.ProxyHeaders{
			Username:    getEnv("CONSOLE_PROXY_USER_HEADER", auth.DefaultUsernameHeader),
			Email:       getEnv("CONSOLE_PROXY_EMAIL_HEADER", auth.DefaultEmailHeader),
			Groups:      getEnv("CONSOLE_PROXY_GROUPS_HEADER", auth.DefaultGroupsHeader),
			DisplayName: getEnv("CONSOLE_PROXY_DISPLAY_NAME_HEADER", auth.DefaultDisplayNameHeader),
		},
		AdminGroups:   getEnvList("CONSOLE_ADMIN_GROUPS", nil),
		EditorGroups:  getEnvList("CONSOLE_EDITOR_GROUPS", nil),
		AnonymousRole: rbac.ParseRole(getEnv("CONSOLE_ANONYMOUS_ROLE", string(rbac.RoleViewer))),
	}
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		CookieName: getEnv("CONSOLE_SESSION_COOKIE_NAME", session.DefaultCookieName),
		Secret:     getEnv("CONSOLE_SESSION_SECRET", ""),
		TTL:        getEnvDuration("CONSOLE_SESSION_TTL", 12*time.Hour),
		Secure:     getEnvBool("CONSOLE_SESSION_SECURE", true),
	}
}

func loadAPIKeysConfig() APIKeysConfig {
	return APIKeysConfig{
		Enabled:       getEnvBool("CONSOLE_APIKEYS_ENABLED", true),
		StoreType:     getEnv("CONSOLE_APIKEYS_STORE", KeyStoreMemory),
		FilePath:      getEnv("CONSOLE_APIKEYS_FILE", ""),
		MaxPerUser:    getEnvInt("CONSOLE_APIKEYS_MAX_PER_USER", 10),
		DefaultExpiry: getEnvDuration("CONSOLE_APIKEYS_DEFAULT_EXPIRY", 90*24*time.Hour),
		SweepSchedule: getEnv("CONSOLE_APIKEYS_SWEEP_SCHEDULE", "@every 10m"),
	}
}

func loadOAuthConfig() sso.Config {
	return sso.Config{
		ClientID:         getEnv("CONSOLE_OAUTH_CLIENT_ID", ""),
		ClientSecret:     getEnv("CONSOLE_OAUTH_CLIENT_SECRET", ""),
		IssuerURL:        getEnv("CONSOLE_OAUTH_ISSUER_URL", ""),
		RedirectURL:      getEnv("CONSOLE_OAUTH_REDIRECT_URL", ""),
		Scopes:           getEnvList("CONSOLE_OAUTH_SCOPES", nil),
		AuthURL:          getEnv("CONSOLE_OAUTH_AUTH_URL", ""),
		TokenURL:         getEnv("CONSOLE_OAUTH_TOKEN_URL", ""),
		UserInfoURL:      getEnv("CONSOLE_OAUTH_USERINFO_URL", ""),
		UsernameClaim:    getEnv("CONSOLE_OAUTH_USERNAME_CLAIM", ""),
		EmailClaim:       getEnv("CONSOLE_OAUTH_EMAIL_CLAIM", ""),
		GroupsClaim:      getEnv("CONSOLE_OAUTH_GROUPS_CLAIM", ""),
		DisplayNameClaim: getEnv("CONSOLE_OAUTH_DISPLAY_NAME_CLAIM", ""),
	}
}

func loadClusterConfig() ClusterConfig {
	return ClusterConfig{
		APIBaseURL:   getEnv("CONSOLE_CLUSTER_API_URL", ""),
		APIToken:     getEnv("CONSOLE_CLUSTER_API_TOKEN", ""),
		ManifestPath: getEnv("CONSOLE_WORKSPACE_MANIFEST", ""),
		CacheSize:    getEnvInt("CONSOLE_AUTHZ_CACHE_SIZE", 1000),
		CacheTTL:     getEnvDuration("CONSOLE_AUTHZ_CACHE_TTL", 5*time.Minute),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("CONSOLE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("CONSOLE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("CONSOLE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("CONSOLE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("CONSOLE_OTEL_SERVICE_NAME", "agentfleet-console"),
		OTelServiceVersion: getEnv("CONSOLE_OTEL_SERVICE_VERSION", "dev"),
		OTelInsecure:       getEnvBool("CONSOLE_OTEL_INSECURE", true),
	}
}

// Validate checks startup-critical settings
func (c *Config) Validate() error {
	if !c.Auth.Mode.Valid() {
		return fmt.Errorf("invalid auth mode %q", c.Auth.Mode)
	}
	if !c.Auth.AnonymousRole.Valid() {
		return fmt.Errorf("invalid anonymous role %q", c.Auth.AnonymousRole)
	}

	// Modes that carry browser sessions need a cookie secret
	if c.Auth.Mode == auth.ModeOAuth || c.Auth.Mode == auth.ModeBuiltin {
		if c.Session.Secret == "" {
			return fmt.Errorf("CONSOLE_SESSION_SECRET is required in %s mode", c.Auth.Mode)
		}
	}

	if c.APIKeys.Enabled {
		switch c.APIKeys.StoreType {
		case KeyStoreMemory:
		case KeyStoreFile:
			if c.APIKeys.FilePath == "" {
				return fmt.Errorf("CONSOLE_APIKEYS_FILE is required for the file key store")
			}
		default:
			return fmt.Errorf("invalid api key store type %q", c.APIKeys.StoreType)
		}
	}

	if c.Cluster.APIBaseURL == "" && c.Cluster.ManifestPath == "" {
		return fmt.Errorf("either CONSOLE_CLUSTER_API_URL or CONSOLE_WORKSPACE_MANIFEST must be set")
	}
	if c.Cluster.APIBaseURL != "" && c.Cluster.ManifestPath != "" {
		return fmt.Errorf("CONSOLE_CLUSTER_API_URL and CONSOLE_WORKSPACE_MANIFEST are mutually exclusive")
	}

	if c.Cluster.CacheSize <= 0 {
		return fmt.Errorf("authz cache size must be positive")
	}
	if c.Cluster.CacheTTL <= 0 {
		return fmt.Errorf("authz cache TTL must be positive")
	}

	return nil
}

// getEnv gets an environment variable with a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvInt gets an integer environment variable with a default
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration gets a duration environment variable with a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvList gets a comma-separated environment variable with a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
