// Package httputil provides HTTP handler utilities for consistent error
// handling and JSON encoding.
package httputil

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// DenialResponse is the structured body returned on authentication and
// authorization failures. Required and Current carry the role or permission
// the caller needed versus what it actually holds.
type DenialResponse struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Required string `json:"required,omitempty"`
	Current  string `json:"current,omitempty"`
}

// WriteUnauthenticated writes a structured 401 response
func WriteUnauthenticated(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusUnauthorized, DenialResponse{
		Error:   "unauthenticated",
		Message: message,
	})
}

// WriteForbidden writes a structured 403 response carrying the required
// versus current role or permission
func WriteForbidden(w http.ResponseWriter, message, required, current string) {
	WriteJSON(w, http.StatusForbidden, DenialResponse{
		Error:    "forbidden",
		Message:  message,
		Required: required,
		Current:  current,
	})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteNotFound writes a not found error (404)
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteInternalError writes an internal server error (500)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err)
}

// WriteCreated writes a successful creation response (201) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
