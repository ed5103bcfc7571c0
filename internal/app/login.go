package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Renal37/dessert-aggregator/internal/middlewares"
	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/Renal37/dessert-aggregator/internal/services"
)

func IsUnknownUserDataValid(data models.UnknownUser) bool {
	return data.Login != nil && *data.Login != "" && data.Password != nil && *data.Password != ""
}

// Register creates a customer account and logs it in right away.
func Register(w http.ResponseWriter, r *http.Request) {
	data := middlewares.GetParsedJSONData[models.UnknownUser](w, r)

	authService := middlewares.GetServiceFromContext[models.AuthService](w, r, middlewares.AuthServiceKey)
	if authService == nil {
		return
	}
	jwtService := middlewares.GetServiceFromContext[models.JWTService](w, r, middlewares.JwtServiceKey)
	if jwtService == nil {
		return
	}

	if !IsUnknownUserDataValid(data) {
		http.Error(w, "Request does not contain login or password", http.StatusBadRequest)
		return
	}

	user, err := (*authService).Register(r.Context(), data)
	if err != nil {
		if errors.Is(err, services.ErrUserIsAlreadyRegistered) {
			http.Error(w, "User is already registered", http.StatusConflict)
			return
		}

		http.Error(w, fmt.Sprintf("Error occurred during registration: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	token, err := (*jwtService).GenerateJWT(user.Login, user.IsAdmin)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error occurred during generating JWT: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", token))
}

// Login checks the credentials and returns a bearer token in the Authorization header.
func Login(w http.ResponseWriter, r *http.Request) {
	data := middlewares.GetParsedJSONData[models.UnknownUser](w, r)

	authService := middlewares.GetServiceFromContext[models.AuthService](w, r, middlewares.AuthServiceKey)
	if authService == nil {
		return
	}
	jwtService := middlewares.GetServiceFromContext[models.JWTService](w, r, middlewares.JwtServiceKey)
	if jwtService == nil {
		return
	}

	if !IsUnknownUserDataValid(data) {
		http.Error(w, "Request does not contain login or password", http.StatusBadRequest)
		return
	}

	user, err := (*authService).Login(r.Context(), data)
	if err != nil {
		if errors.Is(err, services.ErrUserIsNotExist) {
			http.Error(w, fmt.Sprintf("User with login %s does not exist", *data.Login), http.StatusUnauthorized)
			return
		}

		if errors.Is(err, services.ErrPasswordIsIncorrect) {
			http.Error(w, "Password is incorrect", http.StatusUnauthorized)
			return
		}

		http.Error(w, fmt.Sprintf("Error occurred during login: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	token, err := (*jwtService).GenerateJWT(user.Login, user.IsAdmin)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error occurred during generating JWT: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Authorization", fmt.Sprintf("Bearer %s", token))
}
