package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/ternarybob/geoscope/internal/models"
)

var validate = validator.New()

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteServiceError maps the engine's sentinel errors to HTTP status codes
// and writes the error response.
func WriteServiceError(w http.ResponseWriter, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		return WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrResolutionUnavailable):
		return WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		return WriteError(w, http.StatusInternalServerError, err.Error())
	}
}

// DecodeAndValidate decodes the request body into dst and runs struct
// validation. Writes a 400 response and returns false on failure.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// QueryInt extracts an integer query parameter with a default and upper bound.
func QueryInt(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}
