package auth

import (
	"context"
	"strings"

	"agendafit.app/internal/checkin"
)

type ctxKey string

const (
	userIDKey ctxKey = "auth_user_id"
	roleKey   ctxKey = "auth_role"
)

// ContextWithUser stores user identity in the context.
func ContextWithUser(ctx context.Context, u checkin.User) context.Context {
	ctx = context.WithValue(ctx, userIDKey, strings.TrimSpace(u.ID))
	if r := checkin.ParseRole(string(u.Role)); r != "" {
		ctx = context.WithValue(ctx, roleKey, r)
	}
	return ctx
}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(userIDKey).(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// RoleFromContext returns the normalised role stored in context.
func RoleFromContext(ctx context.Context) checkin.Role {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(roleKey).(checkin.Role)
	return v
}

// UserFromContext returns the acting user, if the request was authenticated.
func UserFromContext(ctx context.Context) (checkin.User, bool) {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return checkin.User{}, false
	}
	return checkin.User{ID: id, Role: RoleFromContext(ctx)}, true
}
