package server

import (
	"context"
	"net/http"
	"time"

	"marketnexus/config"
	"marketnexus/internal/cache"
	"marketnexus/internal/engine"
	"marketnexus/internal/watchlist"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server owns the HTTP surface: REST routes, the rate limiter and the
// websocket ticker hub. The watchlist store may be nil when Postgres is not
// configured; its routes then answer 503.
type Server struct {
	engine    *engine.Engine
	cache     *cache.Layer
	watchlist *watchlist.Store
	hub       *Hub
	logger    *zap.Logger
	cfg       config.RateLimitConfig

	httpServer *http.Server
}

func New(eng *engine.Engine, c *cache.Layer, wl *watchlist.Store, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		engine:    eng,
		cache:     c,
		watchlist: wl,
		logger:    logger,
		cfg:       cfg.RateLimit,
	}
	s.hub = newHub(eng, logger)

	if cfg.Log.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(router)

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/api/health", s.handleHealth)

	api := router.Group("/api")
	api.Use(s.rateLimit())
	{
		marketAPI := api.Group("/market")
		marketAPI.GET("/quote/:symbol", s.handleQuote)
		marketAPI.GET("/quotes", s.handleQuotes)
		marketAPI.GET("/candles/:symbol", s.handleCandles)
		marketAPI.GET("/history/:symbol", s.handleHistory)
		marketAPI.GET("/indices", s.handleIndices)

		api.POST("/ledger/calculate", s.handleLedger)

		settings := api.Group("/settings")
		settings.GET("/watchlist", s.handleWatchlistGet)
		settings.POST("/watchlist/:symbol", s.handleWatchlistAdd)
		settings.DELETE("/watchlist/:symbol", s.handleWatchlistRemove)
	}

	router.GET("/ws/ticker", s.hub.serveWS)
}

// Run serves HTTP and drives the ticker hub until ctx is cancelled, then
// shuts down gracefully within the given timeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	go s.hub.run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
