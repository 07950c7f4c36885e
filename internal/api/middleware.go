// Package api implements the knowl HTTP surface using chi: the rendering
// endpoints, the JSON CRUD/search API, and the maintenance routes.
package api

import (
	"context"
	"net/http"
	"strings"
)

// Role is the caller's privilege tier, derived from the bearer token.
type Role int

const (
	// RoleAnonymous can read and render.
	RoleAnonymous Role = iota
	// RoleEditor can save knowls and take edit locks.
	RoleEditor
	// RoleAdmin can delete knowls and run maintenance.
	RoleAdmin
)

type roleKey struct{}

// AuthMiddleware resolves the caller's role from a Bearer token and stores
// it in the request context. With enabled=false every request is treated
// as admin (local single-user mode). An unknown token is rejected; no
// token at all is anonymous.
func AuthMiddleware(enabled bool, editorToken, adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleAdmin
			if enabled {
				auth := r.Header.Get("Authorization")
				switch {
				case auth == "":
					role = RoleAnonymous
				case !strings.HasPrefix(auth, "Bearer "):
					writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
					return
				default:
					token := strings.TrimPrefix(auth, "Bearer ")
					switch {
					case adminToken != "" && token == adminToken:
						role = RoleAdmin
					case editorToken != "" && token == editorToken:
						role = RoleEditor
					default:
						writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
						return
					}
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey{}, role)))
		})
	}
}

// RoleFrom returns the caller's role, defaulting to anonymous.
func RoleFrom(ctx context.Context) Role {
	if role, ok := ctx.Value(roleKey{}).(Role); ok {
		return role
	}
	return RoleAnonymous
}

func requireRole(min Role, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if RoleFrom(r.Context()) < min {
			writeJSON(w, http.StatusForbidden, errorBody("forbidden"))
			return
		}
		next(w, r)
	}
}
