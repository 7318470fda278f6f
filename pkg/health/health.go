package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ai-zoo-bot/pkg/zoo"

	"github.com/gin-gonic/gin"
	"github.com/lmittmann/tint"
)

const (
	pathHealth = "/healthz"
	pathStatus = "/status"

	shutdownTimeout = 5 * time.Second
)

type StatusProvider interface {
	Status() zoo.Status
}

// Server serves liveness and bot status over HTTP.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	mu   sync.RWMutex
	bots []StatusProvider
}

func New(listen string) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine: r,
		httpServer: &http.Server{
			Addr:              listen,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
	}
	r.GET(pathHealth, s.healthCheck)
	r.GET(pathStatus, s.status)
	return s
}

func (s *Server) Add(bot StatusProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bots = append(s.bots, bot)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) healthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) status(c *gin.Context) {
	s.mu.RLock()
	statuses := make([]zoo.Status, 0, len(s.bots))
	for _, bot := range s.bots {
		statuses = append(statuses, bot.Status())
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, statuses)
}

// Serve listens until ctx is done and then shuts the server down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("health: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("health: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("health: error while shutting down", tint.Err(err))
		return err
	}
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("health: request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)))
	}
}
