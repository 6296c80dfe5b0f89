package controlapp

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/afcctl/internal/observability"
	"github.com/danmuck/afcctl/internal/protocol/schema"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusRouter builds the read-only HTTP surface.
func (s *Service) StatusRouter() *gin.Engine {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(s.logger))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.NodeID))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"node":     s.cfg.NodeID,
			"version":  s.handlers.Version,
			"uptime":   time.Since(s.started).String(),
			"requests": s.requestCount(),
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/config", func(c *gin.Context) {
		cfg := s.state.Snapshot()
		observability.RecordConfigGeneration(s.cfg.NodeID, cfg.Generation)
		c.JSON(http.StatusOK, gin.H{
			"node":   s.cfg.NodeID,
			"config": cfg,
		})
	})

	r.GET("/routes", func(c *gin.Context) {
		out := make([]gin.H, 0, s.table.Len())
		for _, code := range []uint16{
			schema.CmdGetControlAppVersion,
			schema.CmdAFCDConfigure,
			schema.CmdAFCDOperation,
			schema.CmdAFCDGetInfo,
		} {
			if route, ok := s.table.Lookup(code); ok {
				out = append(out, gin.H{"command": route.Command, "name": route.Name})
			}
		}
		c.JSON(http.StatusOK, gin.H{"routes": out})
	})
	return r
}

func (s *Service) serveStatus(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              strings.TrimSpace(addr),
		Handler:           s.StatusRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info().Str("addr", srv.Addr).Msg("controlapp.status listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
