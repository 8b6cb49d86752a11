package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"moneytrack/internal/config"
	"moneytrack/internal/log"
	"moneytrack/internal/services"
)

// mutating requests per client IP per minute
const writeRequestsPerMinute = 60

// Server bundles the gin engine with the handlers behind it.
type Server struct {
	engine  *gin.Engine
	limiter *rateLimiter
}

func NewServer(cfg *config.Config, logger *log.Logger, rules *services.RuleService, ledger *services.LedgerService) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	limiter := newRateLimiter(writeRequestsPerMinute)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	scheduled := NewScheduledHandler(rules)
	transactions := NewTransactionsHandler(ledger)

	api := engine.Group("/api")
	api.Use(AuthMiddleware(cfg.JWTSecret))
	api.Use(RateLimit(limiter))
	{
		api.POST("/scheduled", scheduled.Create)
		api.GET("/scheduled", scheduled.List)
		api.PUT("/scheduled/:id", scheduled.Update)
		api.DELETE("/scheduled/:id", scheduled.Delete)

		api.GET("/transactions", transactions.List)
	}

	return &Server{engine: engine, limiter: limiter}
}

// Handler returns the http.Handler for mounting on an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	s.limiter.stop()
}
