package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/jwtpizza/pkg/apperrors"
)

// DecodeBody decodes the JSON request body into dest. Failures are
// validation errors; a body over the MaxBytesMiddleware limit is reported
// as too large.
func DecodeBody(r *http.Request, dest interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return apperrors.Validation("request body is required")
	}

	err := json.NewDecoder(r.Body).Decode(dest)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return apperrors.Validation("request body is required")
	case errors.As(err, &tooLarge):
		return apperrors.Validation("request body too large")
	default:
		return apperrors.Validation("invalid JSON body")
	}
}

// DecodeBodyOrError decodes the body and answers 400 on failure
func DecodeBodyOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := DecodeBody(r, dest); err != nil {
		WriteAppError(w, r, err)
		return false
	}
	return true
}

// PathID returns the positive integer id bound to key by the router
func PathID(r *http.Request, key string) (int64, error) {
	raw, ok := mux.Vars(r)[key]
	if !ok || raw == "" {
		return 0, apperrors.Validation(fmt.Sprintf("missing path parameter %s", key))
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.Validation(fmt.Sprintf("invalid %s: %s", key, raw))
	}
	return id, nil
}

// PathIDOrError is PathID answering 400 on failure
func PathIDOrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	id, err := PathID(r, key)
	if err != nil {
		WriteAppError(w, r, err)
		return 0, false
	}
	return id, true
}

// QueryInt returns the integer query parameter key, or def when absent
func QueryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.Validation(fmt.Sprintf("invalid %s: %s", key, raw))
	}
	return n, nil
}

// QueryIntOrError is QueryInt answering 400 on failure
func QueryIntOrError(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	n, err := QueryInt(r, key, def)
	if err != nil {
		WriteAppError(w, r, err)
		return 0, false
	}
	return n, true
}

// QueryString returns the query parameter key, or def when absent or empty
func QueryString(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}
