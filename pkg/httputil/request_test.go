package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/jwtpizza/pkg/apperrors"
)

func TestDecodeBody(t *testing.T) {
	type login struct {
		Email string `json:"email"`
	}

	t.Run("valid", func(t *testing.T) {
		var dest login
		r := httptest.NewRequest(http.MethodPut, "/api/auth", strings.NewReader(`{"email":"d@jwt.com"}`))
		require.NoError(t, DecodeBody(r, &dest))
		assert.Equal(t, "d@jwt.com", dest.Email)
	})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"truncated", `{"email":`, "invalid JSON body"},
		{"wrong type", `{"email":7}`, "invalid JSON body"},
		{"empty", "", "request body is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dest login
			r := httptest.NewRequest(http.MethodPut, "/api/auth", strings.NewReader(tt.body))
			err := DecodeBody(r, &dest)
			require.Error(t, err)
			appErr, ok := apperrors.As(err)
			require.True(t, ok)
			assert.Equal(t, apperrors.KindValidation, appErr.Kind)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}

	t.Run("too large", func(t *testing.T) {
		var dest login
		r := httptest.NewRequest(http.MethodPut, "/api/auth", strings.NewReader(`{"email":"`+strings.Repeat("a", 64)+`"}`))
		r.Body = http.MaxBytesReader(httptest.NewRecorder(), r.Body, 16)
		err := DecodeBody(r, &dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})

	t.Run("writes 400", func(t *testing.T) {
		var dest login
		r := httptest.NewRequest(http.MethodPut, "/api/auth", nil)
		w := httptest.NewRecorder()
		assert.False(t, DecodeBodyOrError(w, r, &dest))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"message":"request body is required"}`, w.Body.String())
	})
}

func TestPathID(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		want    int64
		wantErr bool
	}{
		{"valid", map[string]string{"franchiseId": "12"}, 12, false},
		{"missing", map[string]string{}, 0, true},
		{"not a number", map[string]string{"franchiseId": "abc"}, 0, true},
		{"zero", map[string]string{"franchiseId": "0"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), tt.vars)
			got, err := PathID(r, "franchiseId")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("writes 400", func(t *testing.T) {
		r := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"storeId": "x"})
		w := httptest.NewRecorder()
		_, ok := PathIDOrError(w, r, "storeId")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestQueryParams(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/franchise?page=2&limit=bad&name=pizza*", nil)

	page, err := QueryInt(r, "page", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page)

	_, err = QueryInt(r, "limit", 10)
	assert.Error(t, err)

	missing, err := QueryInt(r, "missing", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, missing)

	assert.Equal(t, "pizza*", QueryString(r, "name", "*"))
	assert.Equal(t, "*", QueryString(r, "other", "*"))

	w := httptest.NewRecorder()
	_, ok := QueryIntOrError(w, r, "limit", 10)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
