package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondList(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()

	RespondList(w, r, []string{"a", "b"}, 2)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Success bool     `json:"success"`
		Data    []string `json:"data"`
		Meta    MetaInfo `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, []string{"a", "b"}, body.Data)
	assert.Equal(t, "req-1", body.Meta.RequestID)
	require.NotNil(t, body.Meta.Count)
	assert.Equal(t, 2, *body.Meta.Count)
}

func TestParseJSONBody(t *testing.T) {
	type payload struct {
		Stars int `json:"stars"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"stars":4}`, false},
		{"unknown field", `{"stars":4,"extra":1}`, true},
		{"trailing data", `{"stars":4}{"stars":5}`, true},
		{"not json", `stars=4`, true},
		{"too large", `{"stars":` + strings.Repeat("1", 200) + `}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := ParseJSONBody(httptest.NewRecorder(), r, &p, 64)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadBody)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 4, p.Stars)
		})
	}
}
