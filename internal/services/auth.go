package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Renal37/dessert-aggregator/internal/database"
	"github.com/Renal37/dessert-aggregator/internal/logger"
	"github.com/Renal37/dessert-aggregator/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserIsAlreadyRegistered = errors.New("user is already registered")
	ErrUserIsNotExist          = errors.New("user does not exist")
	ErrPasswordIsIncorrect     = errors.New("password is incorrect")
	ErrCredentialsAreEmpty     = errors.New("login and password must not be empty")
)

type AuthService struct {
	storage   AuthStorage
	publisher userEventPublisher
}

type AuthStorage interface {
	CreateUser(ctx context.Context, user database.UserDB) (string, error)
	FindUser(ctx context.Context, login string) (*database.UserDB, error)
}

type userEventPublisher interface {
	PublishUserCreated(ctx context.Context, userID string) error
}

func NewAuthService(storage AuthStorage, publisher userEventPublisher) *AuthService {
	return &AuthService{storage: storage, publisher: publisher}
}

// Register stores a new customer account and announces it so that the user
// count on the dashboard follows.
func (auth *AuthService) Register(ctx context.Context, user models.UnknownUser) (*models.User, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*user.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	created := models.User{
		Login: *user.Login,
		Hash:  string(hashedPassword),
	}

	id, err := auth.storage.CreateUser(ctx, database.UserDB{User: created})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateUser) {
			return nil, ErrUserIsAlreadyRegistered
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	created.ID = id

	if err := auth.publisher.PublishUserCreated(ctx, id); err != nil {
		// The account exists already; the next recompute picks the user up.
		logger.Log.Error("failed to publish user event", zap.String("userID", id), zap.Error(err))
	}

	return &created, nil
}

func (auth *AuthService) Login(ctx context.Context, user models.UnknownUser) (*models.User, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}

	u, err := auth.storage.FindUser(ctx, *user.Login)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if u == nil {
		return nil, ErrUserIsNotExist
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Hash), []byte(*user.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrPasswordIsIncorrect
		}
		return nil, fmt.Errorf("failed to compare passwords: %w", err)
	}

	return &u.User, nil
}

func (auth *AuthService) GetUser(ctx context.Context, login string) (*models.User, error) {
	user, err := auth.storage.FindUser(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		return nil, ErrUserIsNotExist
	}

	return &user.User, nil
}

func validateUser(user models.UnknownUser) error {
	if user.Login == nil || *user.Login == "" || user.Password == nil || *user.Password == "" {
		return ErrCredentialsAreEmpty
	}
	return nil
}
