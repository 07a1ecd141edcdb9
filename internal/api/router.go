// Package api serves the mock and its admin API on one gin engine. Admin
// routes live under /_api; every other request goes through the mock
// pipeline.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-mockapi/internal/apidoc"
	"github.com/prasenjit/go-mockapi/internal/datastore"
	"github.com/prasenjit/go-mockapi/internal/metadata"
	"github.com/prasenjit/go-mockapi/internal/middleware"
	"github.com/prasenjit/go-mockapi/internal/monitor"
)

// AdminPrefix is where the admin API is mounted.
const AdminPrefix = "/_api"

// Options configures the router.
type Options struct {
	Handle  *apidoc.Handle
	Routing metadata.RoutingConfig
	Store   datastore.Store
	Monitor *monitor.Monitor
	Logger  *slog.Logger
	// AccessLog logs one line per request.
	AccessLog bool
}

// Router handles HTTP routing
type Router struct {
	engine   *gin.Engine
	pipeline *middleware.Pipeline
	handler  *Handler
}

// NewRouter creates a new router
func NewRouter(opts Options) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Monitor == nil {
		opts.Monitor = monitor.New(monitor.Options{})
	}

	pipeline := middleware.New(middleware.Options{
		Handle:  opts.Handle,
		Routing: opts.Routing,
		Store:   opts.Store,
		Logger:  logger,
		Monitor: opts.Monitor,
	})

	r := &Router{
		engine:   gin.New(),
		pipeline: pipeline,
		handler:  NewHandler(opts.Handle, pipeline.Mock().Store(), opts.Monitor, logger),
	}

	r.engine.Use(gin.Recovery())
	if opts.AccessLog {
		r.engine.Use(accessLog(logger))
	}

	r.setupRoutes(logger)
	r.engine.NoRoute(pipeline.Handlers()...)

	return r
}

// setupRoutes configures the admin routes
func (r *Router) setupRoutes(logger *slog.Logger) {
	api := r.engine.Group(AdminPrefix, corsMiddleware())
	{
		// Preflight requests are answered by corsMiddleware.
		api.OPTIONS("/*path", func(*gin.Context) {})

		api.GET("/health", r.handler.HealthCheck)

		// API document
		api.GET("/document", r.handler.GetDocument)
		api.POST("/document/reload", r.handler.ReloadDocument)
		api.GET("/routes", r.handler.GetRoutes)

		// Statistics
		api.GET("/stats", r.handler.GetStats)
		api.GET("/stats/operation", r.handler.GetOperationStats)
		api.POST("/stats/reset", r.handler.ResetStats)

		// Tracing
		api.GET("/traces", r.handler.ListTraces)
		api.GET("/traces/stream", gin.WrapH(monitor.NewStreamHandler(r.handler.monitor.Traces, logger)))
		api.GET("/traces/:id", r.handler.GetTrace)
		api.DELETE("/traces", r.handler.ClearTraces)

		// Mock data
		api.GET("/resources", r.handler.ListResources)
		api.DELETE("/resources", r.handler.ClearResources)
	}
}

// Handler returns the http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Pipeline returns the mock pipeline mounted behind the admin routes.
func (r *Router) Pipeline() *middleware.Pipeline {
	return r.pipeline
}

// corsMiddleware adds CORS headers to admin responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"size", c.Writer.Size(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}
