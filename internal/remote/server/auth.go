package server

import (
	"context"
	"net/http"

	"github.com/roach88/gridsync/internal/remote"
)

type contextKey string

const claimsKey contextKey = "claims"

// authenticate rejects requests without a valid bearer token and stores the
// claims in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := remote.BearerToken(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := remote.Verify(s.secret, token)
		if err != nil {
			s.logger.Warn("token rejected", "error", err, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// ClaimsFrom returns the verified claims of an authenticated request.
func ClaimsFrom(ctx context.Context) (*remote.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*remote.Claims)
	return c, ok
}

// userOf returns the token subject, the only trusted source of the user.
func userOf(r *http.Request) string {
	if c, ok := ClaimsFrom(r.Context()); ok {
		return c.Subject
	}
	return ""
}
