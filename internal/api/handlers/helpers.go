package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(r.PathValue(key))
}

// decodeJSON reads a bounded request body and checks the struct's
// validate tags. Oversized or malformed input is a client error, never
// a panic.
func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("validate request body: %w", err)
	}
	return nil
}
