package middleware

import "context"

type contextKey string

const userIDKey contextKey = "user_id"

// WithUserID stores the authenticated principal's identifier in the
// context. The host's auth middleware calls this after a successful
// authentication; anonymous requests simply never set it and stay
// exempt from the user dimension.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext retrieves the authenticated principal's identifier.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
