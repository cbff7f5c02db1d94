package api_gateway

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/rewards-reconciler/internal/api_gateway/handler"
	"github.com/rewards-reconciler/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	batchHandler *handler.BatchHandler,
	reconciliationHandler *handler.ReconciliationHandler,
	customerHandler *handler.CustomerHandler,
	healthHandler *handler.HealthHandler,
) {
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/batches", batchHandler.Ingest)

		reconciliations := v1.Group("/reconciliations")
		{
			reconciliations.POST("", reconciliationHandler.Trigger)
			reconciliations.GET("/:id", reconciliationHandler.GetByID)
			reconciliations.GET("/:id/quarantine", reconciliationHandler.GetQuarantine)
			reconciliations.GET("/:id/exceptions", reconciliationHandler.GetExceptions)
		}

		// Reads default to the latest completed run; run_id pins a specific one
		customers := v1.Group("/customers")
		{
			customers.GET("/:id/balance", customerHandler.GetBalance)
			customers.GET("/:id/history", customerHandler.GetHistory)
			customers.GET("/:id/ledger", customerHandler.GetLedger)
		}
	}

	r.GET("/health", healthHandler.Check)
}
