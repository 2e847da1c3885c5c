package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flyerflutter/dealcomb/app/cfg"
)

// NewServer creates the HTTP engine with all routes configured.
func NewServer(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler) {
	appCfg := cfg.Get()

	r.GET("/areas/:key/deals", handler.GetDeals)
	r.GET("/areas/:key/compare", handler.CompareDeals)

	r.GET("/health", handler.GetHealth)
	r.GET("/stats", handler.GetStats)

	if appCfg.APIAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(appCfg.APIAccessKey))
		{
			api.GET("/areas", handler.APIListAreas)
			api.POST("/areas/:key/refresh", handler.APIRefreshArea)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Info("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		endpoints := map[string]string{
			"deals":   "/areas/<postal code>/deals",
			"compare": "/areas/<postal code>/compare?q=<product>",
			"health":  "/health",
			"stats":   "/stats",
		}

		if appCfg.APIAccessKey != "" {
			endpoints["areas"] = "/api/areas (requires X-API-Key header)"
			endpoints["refresh"] = "/api/areas/<postal code>/refresh (POST, requires X-API-Key header)"
		}

		c.JSON(200, gin.H{
			"service":     "Dealcomb",
			"version":     cfg.GetVersion(),
			"description": "Grocery flyer deal aggregator with cross-merchant price comparison",
			"endpoints":   endpoints,
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
