package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"bazaar/internal/domain"
)

// GuestHeader identifies a guest checkout when no token is sent.
const GuestHeader = "X-Guest-Id"

const guestPrefix = "guest:"

type contextKey string

const actorContextKey contextKey = "actor"

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(domain.Actor)
	return actor, ok
}

// ExtractToken reads a bearer token from the Authorization header.
func ExtractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Middleware resolves the caller. A bad token is rejected; a missing token
// falls back to the guest header, and otherwise the request continues
// without an actor.
func Middleware(jwtService *JWTService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString := ExtractToken(r); tokenString != "" {
				claims, err := jwtService.ValidateToken(tokenString)
				if err != nil {
					logger.Debug("rejected token", zap.Error(err))
					respondUnauthorized(w, err.Error())
					return
				}
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), claims.Actor())))
				return
			}

			if guestID := strings.TrimSpace(r.Header.Get(GuestHeader)); guestID != "" {
				actor := domain.Actor{ID: guestPrefix + guestID, Role: domain.RoleCustomer}
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireActor rejects requests that reached it without an identity.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			respondUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "UNAUTHORIZED",
		"message": message,
	})
}
