package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/getf1tickets/order-service/internal/adapter/http/middleware"
	"github.com/getf1tickets/order-service/internal/logging"
)

func NewRouter(h *OrderHandler, auth *middleware.Auth) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Metrics(), middleware.Logging(logging.New("http")))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	orders := r.Group("/orders", auth.Authenticate())
	{
		orders.POST("", h.CreateOrder)
		// static route first so "stats" is not captured as an :id
		orders.GET("/stats", auth.RequireAdmin(), h.GetStats)
		orders.GET("/:id", h.GetOrderByID)
	}

	return r
}
