package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/agentfleet/console/pkg/apikeys"
	"github.com/agentfleet/console/pkg/httputil"
	"github.com/agentfleet/console/pkg/rbac"
)

type createKeyRequest struct {
	Name      string     `json:"name"`
	Role      rbac.Role  `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// createKeyResponse carries the secret exactly once, at creation
type createKeyResponse struct {
	Key    *apikeys.Key `json:"key"`
	Secret string       `json:"secret"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "key name is required")
		return
	}

	role := req.Role
	if role == "" {
		role = user.Role
	}
	if !role.Valid() {
		httputil.WriteBadRequest(w, "invalid role")
		return
	}
	// A key must never outrank its owner
	if !user.Role.AtLeast(role) {
		httputil.WriteForbidden(w, "key role exceeds your role", string(role), string(user.Role))
		return
	}

	expiresAt := req.ExpiresAt
	if expiresAt == nil && s.keysCfg.DefaultExpiry > 0 {
		t := time.Now().Add(s.keysCfg.DefaultExpiry).UTC()
		expiresAt = &t
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		httputil.WriteBadRequest(w, "expiry must be in the future")
		return
	}

	key, secret, err := s.keys.Create(r.Context(), user.ID, req.Name, role, expiresAt)
	if err != nil {
		switch {
		case errors.Is(err, apikeys.ErrReadOnlyStore):
			httputil.WriteErrorMessage(w, http.StatusConflict, "api key store is read-only")
		case errors.Is(err, apikeys.ErrTooManyKeys):
			httputil.WriteErrorMessage(w, http.StatusConflict, "api key limit reached")
		default:
			s.logger.WithError(err).Error("failed to create api key")
			httputil.WriteInternalError(w, err)
		}
		return
	}

	httputil.WriteCreated(w, createKeyResponse{Key: key, Secret: secret})
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	keys, err := s.keys.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list api keys")
		httputil.WriteInternalError(w, err)
		return
	}

	// Hashes never leave the store boundary
	for _, key := range keys {
		key.KeyHash = ""
	}
	httputil.WriteSuccess(w, map[string]interface{}{"keys": keys})
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	keyID := mux.Vars(r)["id"]

	err := s.keys.Delete(r.Context(), user.ID, keyID)
	switch {
	case err == nil:
		httputil.WriteNoContent(w)
	case errors.Is(err, apikeys.ErrNotFound):
		httputil.WriteNotFound(w, "api key not found")
	case errors.Is(err, apikeys.ErrReadOnlyStore):
		httputil.WriteErrorMessage(w, http.StatusConflict, "api key store is read-only")
	default:
		s.logger.WithError(err).Error("failed to delete api key")
		httputil.WriteInternalError(w, err)
	}
}
