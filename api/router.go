// Package api is the HTTP surface of the authority server: health, metrics, join tokens and
// the websocket upgrade.
package api

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/snower/physync"
	"github.com/snower/physync/netsync"
	"github.com/snower/physync/telemetry"
)

type Config struct {
	Mode     physync.Mode
	Hub      *netsync.Hub
	Registry *telemetry.Registry
	// Issuer guards /ws when set; without it any client may connect and /join is not served.
	Issuer *netsync.TokenIssuer
	Logger *log.Logger
}

type handlers struct {
	mode     physync.Mode
	hub      *netsync.Hub
	registry *telemetry.Registry
	issuer   *netsync.TokenIssuer
	logger   *log.Logger

	started time.Time
	clients atomic.Uint64
}

// NewRouter builds the gin engine. Call gin.SetMode before it to pick the release mode.
func NewRouter(cfg Config) *gin.Engine {
	h := &handlers{
		mode:     cfg.Mode,
		hub:      cfg.Hub,
		registry: cfg.Registry,
		issuer:   cfg.Issuer,
		logger:   cfg.Logger,
		started:  time.Now(),
	}
	if h.logger == nil {
		h.logger = log.Default()
	}
	h.logger = h.logger.WithPrefix("api")
	if h.registry == nil {
		h.registry = telemetry.NewRegistry()
	}

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	router.GET("/healthz", h.health)
	router.GET("/stats", h.stats)
	if h.issuer != nil {
		router.POST("/join", h.join)
	}
	router.GET("/ws", h.websocket)
	return router
}

func (h *handlers) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}
