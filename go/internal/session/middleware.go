package session

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

type contextKey string

const tokenContextKey contextKey = "session_token"

// PublicPaths are reachable without a session cookie. The upload endpoint is
// public because it is an API called before the page redirect settles.
var PublicPaths = map[string]bool{
	"/":                      true,
	"/login":                 true,
	"/logout":                true,
	"/url_to_user":           true,
	"/scan_qr":               true,
	"/get_dynamsoft_license": true,
	"/upload_endpoint":       true,
	"/health":                true,
	"/metrics":               true,
}

// Middleware rejects requests to non-public paths that carry no session
// cookie, and stashes the token in the request context otherwise.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PublicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			log.Debug().Str("path", r.URL.Path).Msg("rejecting request without session")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "login required"})
			return
		}

		ctx := context.WithValue(r.Context(), tokenContextKey, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TokenFromContext returns the session token the middleware extracted.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok && token != ""
}
