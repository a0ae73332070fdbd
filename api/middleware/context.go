package middleware

import "context"

// Request-scoped identity keys. Private type prevents collisions with
// other packages' context values.
type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

// WithUserID injects the authenticated user's ID into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}

// UserIDFromContext returns the authenticated user's ID, or "" when the
// request never passed through Auth.
func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

// RoleFromContext returns the actor role seeded by Auth, or "".
func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
