// internal/api/api.go
package api

import (
	"net/http"

	"github.com/andresuchdata/order-tracker/internal/api/handlers"
	"github.com/andresuchdata/order-tracker/internal/api/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Tracker handlers.OrderTracker
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(cors.New(corsConfig(allowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Tracker != nil {
		orderHandler := handlers.NewOrderHandler(services.Tracker)
		apiGroup.GET("/pipeline", orderHandler.GetPipeline)

		orderGroup := apiGroup.Group("/orders")
		{
			orderGroup.GET("", orderHandler.SearchOrder)
			orderGroup.GET("/:number", orderHandler.GetOrder)
		}
	}

	return router
}
