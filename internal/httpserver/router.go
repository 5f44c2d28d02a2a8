package httpserver

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"emailwriter/internal/handler"
	"emailwriter/pkg/circuitbreaker"
	"emailwriter/pkg/otel"
	"emailwriter/pkg/trace"
)

// BreakerReporter 报告下游熔断状态
type BreakerReporter interface {
	BreakerState() circuitbreaker.State
}

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	emailHandler *handler.EmailHandler,
	breaker BreakerReporter,
	allowedOrigins []string,
	logger *zap.Logger,
) *Router {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(TraceMiddleware())
	r.Use(otel.GinMiddleware())
	r.Use(AccessLogMiddleware(logger))
	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  allowedOrigins,
			AllowMethods:  []string{http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{"Content-Type", trace.HeaderName},
			ExposeHeaders: []string{trace.HeaderName},
		}))
	}

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	r.GET("/readyz", func(c *gin.Context) {
		if breaker != nil && breaker.BreakerState() == circuitbreaker.StateOpen {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "gemini_circuit_open"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/email")
	{
		api.POST("/generate", emailHandler.GenerateReply)
	}

	return &Router{Engine: r}
}
