package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Renal37/dessert-aggregator/internal/logger"
	"github.com/Renal37/dessert-aggregator/internal/middlewares"
	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	// Endpoint is the address the server listens on.
	Endpoint string
}

type Router struct {
	config           Config
	authService      models.AuthService
	jwtService       models.JWTService
	orderService     models.OrderService
	aggregateService models.AggregateService
}

func New(
	config Config,
	authService models.AuthService,
	jwtService models.JWTService,
	orderService models.OrderService,
	aggregateService models.AggregateService,
) *Router {
	return &Router{
		config:           config,
		authService:      authService,
		jwtService:       jwtService,
		orderService:     orderService,
		aggregateService: aggregateService,
	}
}

func (router *Router) get() chi.Router {
	r := chi.NewRouter()

	r.Use(
		middlewares.ServiceInjectorMiddleware(
			router.authService,
			router.jwtService,
			router.orderService,
			router.aggregateService,
		),
		logger.RequestLogger,
		middlewares.AuthMiddleware().WithExcludedPaths(
			"/api/user/register",
			"/api/user/login",
		).Middleware,
	)

	r.Route("/api/user", func(r chi.Router) {
		r.With(middlewares.JSONMiddleware[models.UnknownUser]).Post("/register", Register)
		r.With(middlewares.JSONMiddleware[models.UnknownUser]).Post("/login", Login)

		r.With(middlewares.JSONMiddleware[models.Cart]).Post("/orders", CreateOrder)
		r.Get("/orders", GetOrders)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middlewares.AdminMiddleware)

		r.With(middlewares.JSONMiddleware[statusUpdate]).Patch("/orders/{id}/status", UpdateOrderStatus)
		r.Delete("/orders/{id}", DeleteOrder)

		r.Get("/dashboard/summary", GetSummary)
		r.Get("/dashboard/monthly-sales", GetMonthlySales)

		r.Post("/aggregates/recompute", RecomputeAggregates)
	})

	return r
}

// Run serves HTTP until ctx is cancelled and then shuts the server down gracefully.
func (router *Router) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    router.config.Endpoint,
		Handler: router.get(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("http server started", zap.String("address", router.config.Endpoint))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}

	logger.Log.Info("http server stopped")
	return nil
}
