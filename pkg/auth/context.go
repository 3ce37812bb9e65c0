package auth

import (
	"context"
	"errors"
)

// UserContext represents the authenticated caller of a request.
type UserContext struct {
	UserID string
	Email  string
}

type contextKey string

const userContextKey contextKey = "user"

// GetUserFromContext extracts user from context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, errors.New("user not found in context")
	}
	return user, nil
}

// SetUserInContext adds user to context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// ContextSession answers SessionProvider questions for a single request.
type ContextSession struct {
	ctx context.Context
}

func SessionFromContext(ctx context.Context) ContextSession {
	return ContextSession{ctx: ctx}
}

func (s ContextSession) CurrentUserID() (string, bool) {
	user, err := GetUserFromContext(s.ctx)
	if err != nil || user.UserID == "" {
		return "", false
	}
	return user.UserID, true
}
