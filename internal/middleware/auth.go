package middleware

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type apiKeyCtxKey struct{}

// publicPaths are exempt from authentication.
var publicPaths = map[string]bool{
	"/health": true,
}

// KeyLookup resolves an API key's stored bcrypt hash by its public ID.
type KeyLookup func(ctx context.Context, keyID string) (keyHash string, err error)

// Auth returns middleware that validates an API key presented as
// "Authorization: Bearer <keyID>.<secret>". The secret is compared
// against the stored bcrypt hash. When enabled is false all requests
// pass through untouched.
func Auth(lookup KeyLookup, enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			if publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				// WebSocket clients cannot set headers; allow ?token= instead.
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}

			keyID, secret, ok := strings.Cut(token, ".")
			if !ok {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			hash, err := lookup(r.Context(), keyID)
			if err != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) != nil {
				http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), apiKeyCtxKey{}, keyID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyFromContext returns the key ID used to authenticate the request,
// or an empty string when auth is disabled.
func APIKeyFromContext(ctx context.Context) string {
	id, _ := ctx.Value(apiKeyCtxKey{}).(string)
	return id
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	token := strings.TrimPrefix(h, "Bearer ")
	if token == h {
		return ""
	}
	return token
}
