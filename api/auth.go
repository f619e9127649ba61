package api

import (
	"net/http"
	"strings"
)

// jwtAuthMiddleware requires a valid bearer token when auth is enabled
func (a *API) jwtAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.config.Auth.Enabled {
			ctx := WithUsername(r.Context(), "anonymous")
			ctx = WithRoles(ctx, []string{"admin"})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString := bearerToken(r)
		if tokenString == "" {
			writeError(w, http.StatusUnauthorized, "Authorization required", nil, nil)
			return
		}

		claims, err := validateJWT(tokenString, a.config)
		if err != nil {
			a.logger.Warnw("Invalid JWT token",
				"error", sanitizeLogMessage(err.Error()),
				"ip", a.clientIP(r),
				"request_id", GetRequestIDOrDefault(r.Context()))
			writeError(w, http.StatusUnauthorized, "Invalid token", nil, nil)
			return
		}

		ctx := WithUsername(r.Context(), claims.Username)
		ctx = WithRoles(ctx, claims.Roles)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reads the token from the Authorization header, or from the
// token query parameter for websocket upgrades where browsers cannot set headers
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// requireRole rejects requests whose token carries none of the given roles
func (a *API) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			have, _ := GetRoles(r.Context())
			for _, h := range have {
				if h == "admin" {
					next.ServeHTTP(w, r)
					return
				}
				for _, want := range roles {
					if h == want {
						next.ServeHTTP(w, r)
						return
					}
				}
			}
			username, _ := GetUsername(r.Context())
			a.logger.Warnw("Forbidden", "username", username, "required_roles", roles)
			writeError(w, http.StatusForbidden, "Insufficient permissions", nil, nil)
		})
	}
}
