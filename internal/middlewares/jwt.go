package middlewares

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/Renal37/dessert-aggregator/internal/services"
)

type userFieldType string

const (
	userField   userFieldType = "userField"
	callerField userFieldType = "callerField"
)

type AuthMiddlewareConfig struct {
	excludePaths []string
}

func AuthMiddleware() *AuthMiddlewareConfig {
	return &AuthMiddlewareConfig{}
}

// WithExcludedPaths lists path prefixes served without a token.
func (a *AuthMiddlewareConfig) WithExcludedPaths(paths ...string) *AuthMiddlewareConfig {
	a.excludePaths = paths
	return a
}

// Middleware validates the bearer token and puts the user and the caller
// principal into the request context.
func (a *AuthMiddlewareConfig) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, path := range a.excludePaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		authService := GetServiceFromContext[models.AuthService](w, r, AuthServiceKey)
		if authService == nil {
			return
		}
		jwtService := GetServiceFromContext[models.JWTService](w, r, JwtServiceKey)
		if jwtService == nil {
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == "" {
			http.Error(w, "Bearer token is empty", http.StatusUnauthorized)
			return
		}

		token, err := (*jwtService).ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, services.ErrTokenIsInvalid) {
				http.Error(w, "Token is invalid", http.StatusUnauthorized)
				return
			}

			if errors.Is(err, services.ErrTokenIsExpired) {
				http.Error(w, "Token is expired", http.StatusUnauthorized)
				return
			}

			http.Error(w, fmt.Sprintf("Error occurred during token validation: %s", err.Error()), http.StatusUnauthorized)
			return
		}

		login, err := token.Claims.GetSubject()
		if err != nil {
			http.Error(w, fmt.Sprintf("Error occurred during reading sub field: %s", err.Error()), http.StatusUnauthorized)
			return
		}

		user, err := (*authService).GetUser(r.Context(), login)
		if err != nil {
			if errors.Is(err, services.ErrUserIsNotExist) {
				http.Error(w, fmt.Sprintf("User with login %s does not exist", login), http.StatusUnauthorized)
				return
			}

			http.Error(w, fmt.Sprintf("Error occurred during checking user login: %s", err.Error()), http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userField, user)
		ctx = context.WithValue(ctx, callerField, services.CallerFromToken(token, user))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AdminMiddleware lets through only callers whose token carries the admin claim.
func AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := r.Context().Value(callerField).(models.Caller)
		if !ok {
			http.Error(w, "Authorization is required", http.StatusUnauthorized)
			return
		}

		if !caller.Admin {
			http.Error(w, "Administrator rights are required", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func GetUserFromContext(w http.ResponseWriter, r *http.Request) *models.User {
	user, ok := r.Context().Value(userField).(*models.User)

	if !ok {
		http.Error(w, "Could not retrieve user from context", http.StatusInternalServerError)
		return nil
	}

	return user
}

func GetCallerFromContext(w http.ResponseWriter, r *http.Request) (models.Caller, bool) {
	caller, ok := r.Context().Value(callerField).(models.Caller)

	if !ok {
		http.Error(w, "Could not retrieve caller from context", http.StatusInternalServerError)
		return models.Caller{}, false
	}

	return caller, true
}
