package router

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Renal37/dessert-aggregator/internal/middlewares"
	"github.com/Renal37/dessert-aggregator/internal/models"
	"github.com/Renal37/dessert-aggregator/internal/services"
)

func GetSummary(w http.ResponseWriter, r *http.Request) {
	aggregateService := middlewares.GetServiceFromContext[models.AggregateService](w, r, middlewares.AggregateServiceKey)
	if aggregateService == nil {
		return
	}

	summary, err := (*aggregateService).GetSummary(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Error occurred during reading summary: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	middlewares.EncodeJSONResponse(w, summary)
}

// GetMonthlySales returns the month buckets in chronological order.
func GetMonthlySales(w http.ResponseWriter, r *http.Request) {
	aggregateService := middlewares.GetServiceFromContext[models.AggregateService](w, r, middlewares.AggregateServiceKey)
	if aggregateService == nil {
		return
	}

	months, err := (*aggregateService).GetMonthlySales(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("Error occurred during reading monthly sales: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	if months == nil {
		months = []models.MonthlySales{}
	}

	middlewares.EncodeJSONResponse(w, months)
}

// RecomputeAggregates rebuilds the dashboard from the stored orders.
func RecomputeAggregates(w http.ResponseWriter, r *http.Request) {
	aggregateService := middlewares.GetServiceFromContext[models.AggregateService](w, r, middlewares.AggregateServiceKey)
	if aggregateService == nil {
		return
	}
	caller, ok := middlewares.GetCallerFromContext(w, r)
	if !ok {
		return
	}

	result, err := (*aggregateService).Recompute(r.Context(), caller)
	if err != nil {
		if errors.Is(err, services.ErrPermissionDenied) {
			http.Error(w, "Administrator rights are required", http.StatusForbidden)
			return
		}

		http.Error(w, fmt.Sprintf("Error occurred during recompute: %s", err.Error()), http.StatusInternalServerError)
		return
	}

	middlewares.EncodeJSONResponse(w, result)
}
