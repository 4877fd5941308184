package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/af-corp/chat-gateway/internal/httputil"
)

const bearerUsage = "Use: Authorization: Bearer <api-key>"

// bearerToken extracts the API key from the Authorization header. On failure
// it returns the message to show the caller.
func bearerToken(r *http.Request) (token, problem string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", "Missing Authorization header. " + bearerUsage
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", "Invalid Authorization format. " + bearerUsage
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", "Empty API key"
	}
	return token, ""
}

// authInfo turns a key record into the request identity. principal, when
// set, replaces the key's user so turns are attributed to the signed-in
// person rather than the key owner.
func (m *KeyMetadata) authInfo(principal string) *AuthInfo {
	info := &AuthInfo{
		KeyID:          m.ID,
		OrganizationID: m.OrganizationID,
		TeamID:         m.TeamID,
		UserID:         m.UserID,
		AllowedModels:  m.AllowedModels,
		AllowedTools:   m.AllowedTools,
		RPMLimit:       m.RPMLimit,
	}
	if principal != "" {
		info.UserID = principal
	}
	return info
}

// Middleware authenticates requests by API key. Malformed keys are rejected
// before the store is consulted.
func Middleware(store KeyStore, principalHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := w.Header().Get("X-Request-ID")

			token, problem := bearerToken(r)
			if problem != "" {
				httputil.WriteAuthError(w, reqID, problem)
				return
			}
			log := slog.With("request_id", reqID, "key_prefix", KeyPrefix(token))
			if _, _, ok := splitKey(token); !ok {
				log.Warn("auth failed: malformed key")
				httputil.WriteAuthError(w, reqID, "Invalid API key")
				return
			}

			meta, err := store.Lookup(r.Context(), HashKey(token))
			if err != nil {
				log.Error("key lookup failed", "error", err)
				httputil.WriteInternalError(w, reqID, "Internal error during authentication")
				return
			}
			if meta == nil {
				log.Warn("auth failed: key not found")
				httputil.WriteAuthError(w, reqID, "Invalid API key")
				return
			}

			var principal string
			if principalHeader != "" {
				principal = r.Header.Get(principalHeader)
			}
			ctx := ContextWithAuth(r.Context(), meta.authInfo(principal))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalMiddleware trusts the identity header set by the fronting proxy.
// It never rejects: a request without the header is served anonymously.
func PrincipalMiddleware(principalHeader string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if principal := r.Header.Get(principalHeader); principal != "" {
				r = r.WithContext(ContextWithAuth(r.Context(), &AuthInfo{UserID: principal}))
			}
			next.ServeHTTP(w, r)
		})
	}
}
