package models

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

//go:generate mockgen -destination=mocks/mock_auth.go . AuthService
type AuthService interface {
	Register(ctx context.Context, user UnknownUser) (*User, error)

	Login(ctx context.Context, user UnknownUser) (*User, error)

	GetUser(ctx context.Context, login string) (*User, error)
}

//go:generate mockgen -destination=mocks/mock_jwt.go . JWTService
type JWTService interface {
	GenerateJWT(subject string, admin bool) (string, error)

	ValidateToken(token string) (*jwt.Token, error)
}

//go:generate mockgen -destination=mocks/mock_order.go . OrderService
type OrderService interface {
	CreateOrder(ctx context.Context, userID string, cart Cart) (*Order, error)

	GetOrders(ctx context.Context, userID string) ([]Order, error)

	UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus) (*Order, error)

	DeleteOrder(ctx context.Context, orderID string) error
}

//go:generate mockgen -destination=mocks/mock_aggregate.go . AggregateService
type AggregateService interface {
	GetSummary(ctx context.Context) (Summary, error)

	GetMonthlySales(ctx context.Context) ([]MonthlySales, error)

	Recompute(ctx context.Context, caller Caller) (RecomputeResult, error)
}
