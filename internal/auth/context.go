package auth

import "context"

type contextKey string

const authContextKey contextKey = "chatgw_auth"

// AuthInfo holds the caller identity of a request. With API keys enabled it
// comes from the key record; otherwise only UserID is set, from the
// principal header injected by the fronting proxy.
type AuthInfo struct {
	KeyID          string
	OrganizationID string
	TeamID         string
	UserID         string
	AllowedModels  []string
	AllowedTools   []string
	RPMLimit       *int
}

// Identity is the key used for logging, rate limiting and policy.
func (a *AuthInfo) Identity() string {
	if a == nil {
		return ""
	}
	if a.UserID != "" {
		return a.UserID
	}
	if a.KeyID != "" {
		return "key:" + a.KeyID
	}
	return ""
}

// AllowsModel reports whether the caller may use model. An empty allow list
// permits every model.
func (a *AuthInfo) AllowsModel(model string) bool {
	if a == nil || len(a.AllowedModels) == 0 {
		return true
	}
	for _, m := range a.AllowedModels {
		if m == model || m == "*" {
			return true
		}
	}
	return false
}

// AllowsTool reports whether the caller may enable tool. An empty allow list
// permits every tool.
func (a *AuthInfo) AllowsTool(tool string) bool {
	if a == nil || len(a.AllowedTools) == 0 {
		return true
	}
	for _, t := range a.AllowedTools {
		if t == tool || t == "*" {
			return true
		}
	}
	return false
}

func ContextWithAuth(ctx context.Context, info *AuthInfo) context.Context {
	return context.WithValue(ctx, authContextKey, info)
}

func AuthFromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(authContextKey).(*AuthInfo)
	return info, ok
}
