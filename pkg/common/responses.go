package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// APIVersion is reported in every response's meta block.
const APIVersion = "v1"

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Version   string `json:"version,omitempty"`
	Count     *int   `json:"count,omitempty"`
}

// RespondJSON sends data wrapped in the success envelope.
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	RespondWithMeta(w, status, data, NewMeta(r))
}

// RespondList is RespondJSON with the item count in meta.
func RespondList(w http.ResponseWriter, r *http.Request, data interface{}, count int) {
	meta := NewMeta(r)
	meta.Count = &count
	RespondWithMeta(w, http.StatusOK, data, meta)
}

// RespondWithMeta sends a response with metadata
func RespondWithMeta(w http.ResponseWriter, status int, data interface{}, meta *MetaInfo) {
	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    meta,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}

// NewMeta builds the meta block for r.
func NewMeta(r *http.Request) *MetaInfo {
	return &MetaInfo{
		RequestID: ExtractRequestID(r),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   APIVersion,
	}
}

// ExtractRequestID extracts the request ID from the request context
func ExtractRequestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	if id := r.Header.Get("X-Request-ID"); id != "" {
		return id
	}
	return r.Header.Get("X-Amzn-Trace-Id")
}

// ErrBadBody is returned by ParseJSONBody for any malformed payload.
var ErrBadBody = errors.New("invalid request body")

// ParseJSONBody parses JSON request body with size limit. Unknown fields and
// trailing data are rejected.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("%w: unexpected data after JSON object", ErrBadBody)
	}
	return nil
}
