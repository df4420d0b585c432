package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/partsdesk/parts-broker/internal/user"
)

type contextKey string

const userContextKey contextKey = "current_user"

// Auth resolves the bearer token into a user and stores it on the request
// context. There is no other credential; an unknown token is a 401.
type Auth struct {
	users user.Repository
}

func NewAuth(users user.Repository) *Auth {
	return &Auth{users: users}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing authorization token")
			return
		}

		u, err := a.users.GetByToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				respondWithError(w, http.StatusUnauthorized, "Invalid authorization token")
				return
			}
			log.Error().Err(err).Msg("Failed to resolve user by token")
			respondWithError(w, http.StatusInternalServerError, "Failed to authorize request")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, u)))
	})
}

// HandleSession returns the user behind the presented token; the frontend
// calls it on load to restore its session.
func (a *Auth) HandleSession(w http.ResponseWriter, r *http.Request) {
	u := CurrentUser(r.Context())
	if u == nil {
		respondWithError(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// HandleListUsers returns users filtered by role, e.g. the buyers list the
// administrator assigns offers to.
func (a *Auth) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	role := user.Role(r.URL.Query().Get("role"))
	if role == "" {
		role = user.RoleBuyer
	}

	users, err := a.users.ListByRole(r.Context(), role)
	if err != nil {
		log.Error().Err(err).Str("role", string(role)).Msg("Failed to list users by role")
		respondWithError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	respondWithJSON(w, http.StatusOK, users)
}

// CurrentUser returns the authenticated user or nil outside the middleware.
func CurrentUser(ctx context.Context) *user.User {
	u, _ := ctx.Value(userContextKey).(*user.User)
	return u
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}
