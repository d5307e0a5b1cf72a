// Package server provides the HTTP adapter over the bill and inventory
// services. Handlers translate requests and map service errors to status
// codes; no business logic lives here.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Pegais/Sretails-RetailStore-Management-Application/internal/service"
)

// Config holds HTTP server configuration.
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP server adapter.
type Server struct {
	config     Config
	httpServer *http.Server
	router     *gin.Engine
	logger     *zap.Logger
}

// New creates the HTTP server and wires all routes.
func New(config Config, bills *service.BillService, inventory *service.InventoryService, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{
		config: config,
		router: router,
		logger: logger,
	}

	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	handlers := NewHandlers(bills, inventory, logger)

	router.GET("/health", handlers.HealthCheck)

	api := router.Group("/api/v1")
	api.Use(requireStore())
	{
		api.POST("/bills", handlers.UploadBill)
		api.GET("/bills", handlers.ListBills)
		api.GET("/bills/:id/status", handlers.GetBillStatus)

		api.GET("/inventory", handlers.ListInventory)
		api.GET("/inventory/:id", handlers.GetInventoryItem)
		api.POST("/inventory/:id/adjust", handlers.AdjustQuantity)
		api.GET("/inventory/:id/changelog", handlers.GetChangeLog)
	}

	return s
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// Start runs the server until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully drains in-flight requests.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing).
func (s *Server) Router() *gin.Engine {
	return s.router
}
