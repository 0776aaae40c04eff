package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/farmcart-sync/internal/session"
	"github.com/angelmondragon/farmcart-sync/pkg/logger"
)

type contextKey string

const ctxUserID contextKey = "user_id"

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// SessionContext tags the request with the signed-in user, if any.
func SessionContext(src session.Provider, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				next.ServeHTTP(w, r)
				return
			}
			st := src.Status()
			if !st.Authenticated || st.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithUserID(r.Context(), st.UserID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, st.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
