package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenIsInvalid = errors.New("token is invalid")
	ErrTokenIsExpired = errors.New("token is expired")
)

// AdminClaim is the token claim that grants access to the back-office endpoints.
const AdminClaim = "admin"

const tokenLifetime = 24 * time.Hour

type JWTService struct {
	authSecretKey string
}

func NewJWTService(authSecretKey string) *JWTService {
	return &JWTService{authSecretKey: authSecretKey}
}

// GenerateJWT signs an HS256 token for subject valid for 24 hours.
func (j *JWTService) GenerateJWT(subject string, admin bool) (string, error) {
	now := time.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      subject,
		"iat":      now.Unix(),
		"exp":      now.Add(tokenLifetime).Unix(),
		AdminClaim: admin,
	})

	tokenString, err := token.SignedString([]byte(j.authSecretKey))
	if err != nil {
		return "", fmt.Errorf("error while generating token: %w", err)
	}

	return tokenString, nil
}

func (j *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	parsedToken, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.authSecretKey), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenIsExpired
		}

		return nil, fmt.Errorf("error while validating token: %w", err)
	}

	if !parsedToken.Valid {
		return nil, ErrTokenIsInvalid
	}

	return parsedToken, nil
}

// CallerFromToken reads the principal out of a validated token.
func CallerFromToken(token *jwt.Token, user *models.User) models.Caller {
	caller := models.Caller{}
	if user != nil {
		caller.UserID = user.ID
		caller.Login = user.Login
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return caller
	}

	if admin, ok := claims[AdminClaim].(bool); ok {
		caller.Admin = admin
	}

	return caller
}
