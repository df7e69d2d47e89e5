// Package httpjson writes and reads the JSON bodies of the HTTP API.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the body of every error response. Message is the status text only.
type ErrorBody struct {
	Error string `json:"error"`
}

// Write encodes v as the JSON response body with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a generic error body for status.
func Error(w http.ResponseWriter, status int) {
	Write(w, status, ErrorBody{Error: http.StatusText(status)})
}

// Decode reads a single JSON object from the request body into v.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}
