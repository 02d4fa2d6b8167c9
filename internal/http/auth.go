package http

import (
	"context"
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type userContextKey struct{}

// withUser returns ctx carrying the authenticated user.
func withUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the user set by the authentication middleware.
func UserFromContext(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(core.User)
	return u, ok
}

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// authenticated rejects requests without a valid bearer token and passes
// the resolved user to next through the request context.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			UnauthorizedError("Not authenticated").Write(w)
			return
		}

		u, err := s.users.Authenticate(r.Context(), token)
		if err != nil {
			writeError(w, r, "authenticate", err)
			return
		}

		ctx := withUser(r.Context(), u)
		logger := log.FromContext(ctx).With(log.FieldUserID, u.ID)
		next(w, r.WithContext(log.NewContext(ctx, logger)))
	}
}

// currentUser is only valid inside handlers wrapped by authenticated.
func currentUser(r *http.Request) core.User {
	u, _ := UserFromContext(r.Context())
	return u
}
