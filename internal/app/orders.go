package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Renal37/dessert-aggregator/internal/middlewares"
	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/Renal37/dessert-aggregator/internal/services"
	"github.com/go-chi/chi/v5"
)

type statusUpdate struct {
	Status *string `json:"status"`
}

// CreateOrder checks out the cart of the authenticated user.
func CreateOrder(w http.ResponseWriter, r *http.Request) {
	cart := middlewares.GetParsedJSONData[models.Cart](w, r)

	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if orderService == nil {
		return
	}
	user := middlewares.GetUserFromContext(w, r)
	if user == nil {
		return
	}

	order, err := (*orderService).CreateOrder(r.Context(), user.ID, cart)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCart) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		if errors.Is(err, services.ErrDuplicateOrder) {
			http.Error(w, "Order already exists", http.StatusConflict)
			return
		}

		http.Error(w, fmt.Sprintf("Error occurred during creating order: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	middlewares.EncodeJSONResponseWithStatus(w, http.StatusCreated, order)
}

func GetOrders(w http.ResponseWriter, r *http.Request) {
	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if orderService == nil {
		return
	}
	user := middlewares.GetUserFromContext(w, r)
	if user == nil {
		return
	}

	orders, err := (*orderService).GetOrders(r.Context(), user.ID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error occurred during getting orders: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	middlewares.EncodeJSONResponse(w, orders)
}

// UpdateOrderStatus moves an order to the status given in the body.
func UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	data := middlewares.GetParsedJSONData[statusUpdate](w, r)

	if data.Status == nil || *data.Status == "" {
		http.Error(w, "Request does not contain status", http.StatusBadRequest)
		return
	}

	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if orderService == nil {
		return
	}

	order, err := (*orderService).UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), models.OrderStatus(*data.Status))
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		if errors.Is(err, services.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}

		http.Error(w, fmt.Sprintf("Error occurred during updating order: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	middlewares.EncodeJSONResponse(w, order)
}

func DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderService := middlewares.GetServiceFromContext[models.OrderService](w, r, middlewares.OrderServiceKey)
	if orderService == nil {
		return
	}

	if err := (*orderService).DeleteOrder(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, services.ErrOrderNotFound) {
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}

		http.Error(w, fmt.Sprintf("Error occurred during deleting order: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
