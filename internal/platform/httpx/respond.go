// Package httpx provides HTTP response utilities for the JSON envelope.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/lensworks/lensworks/internal/shared"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Errors  []shared.FieldError `json:"errors,omitempty"`
	Message string              `json:"message,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK wraps data in a success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Success: true, Data: data})
}

// Fail sends a non-validation failure with a human-readable message.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

// Invalid sends the full field error list.
func Invalid(w http.ResponseWriter, fields []shared.FieldError) {
	JSON(w, http.StatusUnprocessableEntity, Envelope{Success: false, Errors: fields, Message: "validation failed"})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(target)
}
