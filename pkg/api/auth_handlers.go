package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"time"

	"github.com/agentfleet/console/pkg/auth"
	"github.com/agentfleet/console/pkg/httputil"
	"github.com/agentfleet/console/pkg/rbac"
)

// loginStateCookie holds the in-flight login attempt between the redirect
// to the provider and the callback
const loginStateCookie = "console_login_state"

// loginStateTTL bounds how long a login attempt may stay open
const loginStateTTL = 10 * time.Minute

type loginState struct {
	State    string `json:"state"`
	Verifier string `json:"verifier"`
}

func randomState() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	verifier := s.sso.GenerateVerifier()

	sealed, err := s.sessions.Seal(loginState{State: state, Verifier: verifier})
	if err != nil {
		s.logger.WithError(err).Error("failed to seal login state")
		httputil.WriteInternalError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     loginStateCookie,
		Value:    sealed,
		Path:     "/auth",
		MaxAge:   int(loginStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.sessions.SecureCookies(),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.sso.AuthCodeURL(state, verifier), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(loginStateCookie)
	if err != nil {
		httputil.WriteBadRequest(w, "missing login state")
		return
	}
	var state loginState
	if err := s.sessions.Open(cookie.Value, &state); err != nil {
		httputil.WriteBadRequest(w, "invalid login state")
		return
	}

	if r.URL.Query().Get("state") != state.State {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	identity, err := s.sso.Exchange(r.Context(), code, state.Verifier)
	if err != nil {
		s.logger.WithError(err).Warn("oidc code exchange failed")
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "login failed")
		return
	}

	user := &auth.User{
		ID:          identity.Username,
		Username:    identity.Username,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Groups:      identity.Groups,
		Role:        rbac.RoleForGroups(identity.Groups, s.ssoCfg.AdminGroups, s.ssoCfg.EditorGroups),
		Provider:    auth.ProviderOAuth,
	}
	if err := s.sessions.Write(w, auth.SessionPayload{User: user}); err != nil {
		s.logger.WithError(err).Error("failed to write session")
		httputil.WriteInternalError(w, err)
		return
	}

	// Drop the one-shot login state
	http.SetCookie(w, &http.Cookie{
		Name:     loginStateCookie,
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.sessions.SecureCookies(),
	})

	redirect := s.ssoCfg.PostLoginRedirect
	if redirect == "" {
		redirect = "/"
	}
	s.logger.WithFields(map[string]interface{}{
		"username": user.Username,
		"role":     string(user.Role),
	}).Info("user logged in")
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user := currentUser(r); !user.IsAnonymous() {
		s.logger.WithField("username", user.Username).Info("user logged out")
	}
	s.sessions.Destroy(w)
	httputil.WriteNoContent(w)
}
