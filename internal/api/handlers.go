package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"steam-price-api/internal/middleware"
	"steam-price-api/internal/models"
	"steam-price-api/internal/steam"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	client    *steam.Client
	logger    *logrus.Logger
	startTime time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(client *steam.Client, logger *logrus.Logger) *Handlers {
	return &Handlers{
		client:    client,
		logger:    logger,
		startTime: time.Now(),
	}
}

// BatchPriceRequest is the body of a batch price lookup
type BatchPriceRequest struct {
	Items    []string `json:"items" binding:"required"`
	Currency int      `json:"currency"`
}

// BatchPriceResponse maps item names to their fetched prices. Items with no
// market data are listed under missing.
type BatchPriceResponse struct {
	Prices  map[string]*models.PriceOverview `json:"prices"`
	Missing []string                         `json:"missing,omitempty"`
}

// SetupRoutes configures all the routes using Gin
func (handlers *Handlers) SetupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(middleware.RequestLogger(handlers.logger))
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestID())
	router.Use(handlers.corsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/price", handlers.GetPrice)
		apiV1.POST("/prices", handlers.BatchPrices)
		apiV1.GET("/proxies/stats", handlers.ProxyStats)
		apiV1.DELETE("/cache", handlers.ClearCache)
	}

	return router
}

// HealthCheck handles health check requests. The service is degraded when
// proxying is on but no healthy proxy remains.
func (handlers *Handlers) HealthCheck(context *gin.Context) {
	healthStatus := "healthy"
	if handlers.client.Pool().Len() > 0 && handlers.client.Pool().HealthyCount() == 0 {
		healthStatus = "degraded"
		handlers.logger.Warn("No healthy proxies available")
	}

	healthCheckResponse := models.HealthCheck{
		Status:    healthStatus,
		Timestamp: time.Now(),
		Version:   "1.0.0",
		Uptime:    time.Since(handlers.startTime).String(),
	}

	context.JSON(http.StatusOK, healthCheckResponse)
}

// GetPrice returns the current market price for one item
func (handlers *Handlers) GetPrice(context *gin.Context) {
	itemName := context.Query("item")
	if itemName == "" {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "Missing item", "item query parameter is required")
		return
	}

	currency, parseError := strconv.Atoi(context.DefaultQuery("currency", "1"))
	if parseError != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "Invalid currency", "currency must be a number")
		return
	}

	requestContext := context.Request.Context()

	overview, waited, fetchError := handlers.client.FetchPrice(requestContext, itemName, currency)
	if fetchError != nil {
		handlers.logger.Errorf("Failed to fetch price for %s: %v", itemName, fetchError)
		handlers.writeErrorResponse(context, http.StatusBadGateway, "Failed to fetch price", fetchError.Error())
		return
	}
	if overview == nil {
		handlers.writeErrorResponse(context, http.StatusNotFound, "No price data", "item has no market listing")
		return
	}

	context.JSON(http.StatusOK, models.ItemPrice{
		MarketHashName: itemName,
		Currency:       currency,
		Price:          steam.PriceValue(overview),
		WaitedSeconds:  waited.Seconds(),
		FetchedAt:      time.Now(),
		Raw:            overview,
	})
}

// BatchPrices returns prices for a list of items in one request
func (handlers *Handlers) BatchPrices(context *gin.Context) {
	var request BatchPriceRequest
	if bindError := context.ShouldBindJSON(&request); bindError != nil {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "Invalid request body", bindError.Error())
		return
	}
	if len(request.Items) == 0 {
		handlers.writeErrorResponse(context, http.StatusBadRequest, "Empty batch", "items must not be empty")
		return
	}

	currency := request.Currency
	if currency == 0 {
		currency = 1
	}

	requestContext := context.Request.Context()

	prices, fetchError := handlers.client.FetchMany(requestContext, request.Items, currency)
	if fetchError != nil {
		handlers.logger.Errorf("Batch price fetch failed: %v", fetchError)
		handlers.writeErrorResponse(context, http.StatusBadGateway, "Failed to fetch prices", fetchError.Error())
		return
	}

	response := BatchPriceResponse{Prices: prices}
	for _, itemName := range request.Items {
		if _, ok := prices[itemName]; !ok {
			response.Missing = append(response.Missing, itemName)
		}
	}

	context.JSON(http.StatusOK, response)
}

// ProxyStats reports pool health and per-proxy counters
func (handlers *Handlers) ProxyStats(context *gin.Context) {
	context.JSON(http.StatusOK, gin.H{
		"pool":  handlers.client.Pool().Stats(),
		"cache": handlers.client.Cache().Stats(),
	})
}

// ClearCache drops all cached prices
func (handlers *Handlers) ClearCache(context *gin.Context) {
	handlers.client.Cache().Clear()
	handlers.logger.Info("Price cache cleared")
	context.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// writeErrorResponse writes an error response using Gin context
func (handlers *Handlers) writeErrorResponse(context *gin.Context, statusCode int, errorMessage, errorDetails string) {
	errorResponse := models.ErrorResponse{
		Error:   errorMessage,
		Message: errorDetails,
		Code:    statusCode,
	}

	context.JSON(statusCode, errorResponse)
}

// corsMiddleware adds CORS headers using Gin middleware
func (handlers *Handlers) corsMiddleware() gin.HandlerFunc {
	return func(context *gin.Context) {
		context.Header("Access-Control-Allow-Origin", "*")
		context.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		context.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if context.Request.Method == "OPTIONS" {
			context.AbortWithStatus(http.StatusOK)
			return
		}

		context.Next()
	}
}
