package middleware

import (
	"errors"
	"net/http"
	"strings"

	"librefind/pkg/auth"
	apperrors "librefind/pkg/errors"

	"go.uber.org/zap"
)

// Authenticate requires a valid bearer token and puts its user in the
// request context.
func Authenticate(validator *auth.JWTValidator, errs *apperrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return authenticate(validator, errs, logger, true)
}

// OptionalAuthenticate accepts anonymous requests but still rejects a token
// that is present and invalid. Read endpoints use it to personalise results.
func OptionalAuthenticate(validator *auth.JWTValidator, errs *apperrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return authenticate(validator, errs, logger, false)
}

func authenticate(validator *auth.JWTValidator, errs *apperrors.ErrorHandler, logger *zap.Logger, required bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				if required {
					errs.HandleStatus(w, r, http.StatusUnauthorized, "Missing authentication token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("ip", getClientIP(r)),
					zap.String("path", r.URL.Path),
				)

				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					errs.HandleStatus(w, r, http.StatusUnauthorized, "Token has expired")
				case errors.Is(err, auth.ErrInvalidSignature):
					errs.HandleStatus(w, r, http.StatusUnauthorized, "Invalid token signature")
				default:
					errs.HandleStatus(w, r, http.StatusUnauthorized, "Invalid token")
				}
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
			})

			logger.Debug("Request authenticated",
				zap.String("user_id", claims.UserID),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// KeyFunc picks the rate-limit bucket for a request. An empty key skips
// limiting.
type KeyFunc func(r *http.Request) string

// UserKey buckets by authenticated user.
func UserKey(r *http.Request) string {
	if user, err := auth.GetUserFromContext(r.Context()); err == nil {
		return "user:" + user.UserID
	}
	return ""
}

// ClientIPKey buckets by client address.
func ClientIPKey(r *http.Request) string {
	return "ip:" + getClientIP(r)
}

// RateLimit rejects requests once key's bucket is empty.
func RateLimit(limiter auth.RateLimiter, key KeyFunc, errs *apperrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), k)
			if err != nil {
				logger.Error("Rate limiter error", zap.Error(err))
				errs.Handle(w, r, err)
				return
			}
			if !allowed {
				errs.Handle(w, r, apperrors.ErrRateLimitExceeded.Clone())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the JWT token from the Authorization header or the
// auth_token cookie.
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
