package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/mbakke/listsync/internal/server/auth"
)

type ctxKey string

const principalIDKey ctxKey = "principalID"

// PrincipalID returns the authenticated user's id from the request context,
// or "" when the request is unauthenticated.
func PrincipalID(ctx context.Context) string {
	id, _ := ctx.Value(principalIDKey).(string)
	return id
}

// requireAuth resolves the principal from the Authorization header (Bearer
// token) before the handler runs. Requests without a valid token get 401 and
// never reach the handler.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeErrorCode(w, http.StatusUnauthorized, "unauthenticated", "missing token")
			return
		}

		userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
		if err != nil {
			writeErrorCode(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), principalIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	// websocket clients cannot set headers from every environment, so the
	// token is also accepted as a query parameter
	return r.URL.Query().Get("token")
}

// logRequests logs method, path, duration and status of every request.
func (s *Server) logRequests(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(handler, w, r)
		s.logger.Info(r.Context(), "handled",
			"method", r.Method, "url", r.URL.Path, "duration", m.Duration, "status", m.Code)
	})
}
