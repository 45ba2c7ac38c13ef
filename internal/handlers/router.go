package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/checkout"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/middleware"
	"github.com/noorulameen-lester/Honey-Palace-sub000/internal/validation"
)

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(svc *checkout.Service, log *slog.Logger, requestTimeout time.Duration) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(log), middleware.Recovery(log), middleware.Timeout(requestTimeout))

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v := validation.New()
	RegisterOrdersRoutes(r, svc, v, log)
	RegisterOTPRoutes(r, svc, v, log)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	})
	return r
}
