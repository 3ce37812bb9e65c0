package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrorResponse is the failure form of the API envelope
// {success, data, error, meta}.
type ErrorResponse struct {
	Success bool       `json:"success"`
	Error   ErrorBody  `json:"error"`
	Meta    *ErrorMeta `json:"meta,omitempty"`
}

// ErrorBody describes what went wrong.
type ErrorBody struct {
	Type    string                 `json:"type"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorMeta carries request correlation ids.
type ErrorMeta struct {
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// ErrorHandler handles errors and sends appropriate HTTP responses
type ErrorHandler struct {
	logger        *zap.Logger
	debug         bool
	defaultStatus int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{
		logger:        logger,
		debug:         debug,
		defaultStatus: http.StatusInternalServerError,
	}
}

// Handle processes an error and sends an HTTP response
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	var (
		status int
		body   ErrorBody
	)

	var validationErrs *ValidationErrors
	var domainErr *DomainError

	switch {
	case errors.As(err, &validationErrs):
		status = http.StatusBadRequest
		fields := make(map[string]interface{})
		for field, messages := range validationErrs.ToMap() {
			fields[field] = messages
		}
		body = ErrorBody{
			Type:    string(ErrorTypeValidation),
			Message: "Validation failed",
			Details: map[string]interface{}{"fields": fields},
		}
		h.logger.Info("Request failed validation",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Any("fields", fields),
		)

	case errors.As(err, &domainErr):
		status = domainErr.StatusCode
		if status == 0 {
			status = h.defaultStatus
		}
		body = ErrorBody{
			Type:    string(domainErr.Type),
			Code:    domainErr.Code,
			Message: domainErr.Message,
			Details: domainErr.Details,
		}
		h.logger.Warn(domainErr.Message,
			zap.String("code", domainErr.Code),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
		)

	case GetAppError(err) != nil:
		appErr := GetAppError(err)
		status = appErr.HTTPStatus
		if status == 0 {
			status = h.defaultStatus
		}
		body = ErrorBody{
			Type:    string(appErr.Type),
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}

		h.logError(r, appErr, status)

		if h.debug && appErr.Cause != nil {
			if body.Details == nil {
				body.Details = make(map[string]interface{})
			}
			body.Details["cause"] = appErr.Cause.Error()
		}

	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		body = ErrorBody{Type: string(ErrorTypeUnavailable), Message: "The request timed out"}
		h.logger.Warn("Request timed out", zap.String("path", r.URL.Path), zap.Error(err))

	default:
		status = h.defaultStatus
		body = ErrorBody{
			Type:    string(ErrorTypeInternal),
			Message: "An internal error occurred",
		}

		h.logger.Error("Unhandled error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID(r)),
			zap.Int("status", status),
		)

		if h.debug {
			body.Message = err.Error()
		}
	}

	h.send(w, r, status, body)
}

// HandleStatus sends an error response with a specific status code
func (h *ErrorHandler) HandleStatus(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.logger.Warn("HTTP error",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("message", message),
	)

	h.send(w, r, status, ErrorBody{Type: h.statusToErrorType(status), Message: message})
}

// logError logs an application error with appropriate level
func (h *ErrorHandler) logError(r *http.Request, err *AppError, status int) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", requestID(r)),
	}

	if err.Code != "" {
		fields = append(fields, zap.String("error_code", err.Code))
	}

	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}

	if err.Details != nil {
		fields = append(fields, zap.Any("details", err.Details))
	}

	switch {
	case status >= 500:
		h.logger.Error(err.Message, fields...)
	case status >= 400:
		h.logger.Warn(err.Message, fields...)
	default:
		h.logger.Info(err.Message, fields...)
	}
}

func (h *ErrorHandler) send(w http.ResponseWriter, r *http.Request, status int, body ErrorBody) {
	resp := ErrorResponse{Success: false, Error: body}
	if id, trace := requestID(r), r.Header.Get("X-Amzn-Trace-Id"); id != "" || trace != "" {
		resp.Meta = &ErrorMeta{RequestID: id, TraceID: trace}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}

// requestID prefers the id assigned by chi's RequestID middleware.
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// statusToErrorType maps HTTP status to error type
func (h *ErrorHandler) statusToErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(ErrorTypeValidation)
	case http.StatusUnauthorized:
		return string(ErrorTypeUnauthorized)
	case http.StatusForbidden:
		return string(ErrorTypeForbidden)
	case http.StatusNotFound:
		return string(ErrorTypeNotFound)
	case http.StatusConflict:
		return string(ErrorTypeConflict)
	case http.StatusTooManyRequests:
		return string(ErrorTypeRateLimit)
	case http.StatusServiceUnavailable:
		return string(ErrorTypeUnavailable)
	case http.StatusBadGateway:
		return string(ErrorTypeExternal)
	default:
		return string(ErrorTypeInternal)
	}
}

// Middleware returns an HTTP middleware that turns panics into 500 responses
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				h.Handle(w, r, NewInternalError(fmt.Sprintf("panic: %v", rec)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
