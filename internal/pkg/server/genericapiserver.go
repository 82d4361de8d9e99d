// Package server provides the generic gin-based API server shared by the
// lorekeeper daemon: engine setup, health/version routes, optional pprof,
// and lifecycle management.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/wyrdlab/reverie/pkg/logger"
)

// Config holds the generic server configuration.
type Config struct {
	Mode            string
	BindAddress     string
	BindPort        int
	Healthz         bool
	EnableProfiling bool
	Middlewares     []string
}

// NewConfig returns a Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Mode:            gin.ReleaseMode,
		BindAddress:     "127.0.0.1",
		BindPort:        8711,
		Healthz:         true,
		EnableProfiling: false,
	}
}

// CompletedConfig is a Config with all defaults filled in.
type CompletedConfig struct {
	*Config
}

// Complete fills in any unset fields and returns a CompletedConfig.
func (c *Config) Complete() CompletedConfig {
	if c.Mode == "" {
		c.Mode = gin.ReleaseMode
	}
	if c.BindPort == 0 {
		c.BindPort = 8711
	}
	return CompletedConfig{c}
}

// New builds the GenericAPIServer from a completed config.
func (c CompletedConfig) New() (*GenericAPIServer, error) {
	gin.SetMode(c.Mode)

	s := &GenericAPIServer{
		Engine:          gin.New(),
		address:         fmt.Sprintf("%s:%d", c.BindAddress, c.BindPort),
		healthz:         c.Healthz,
		enableProfiling: c.EnableProfiling,
	}
	s.setup()
	return s, nil
}

// GenericAPIServer wraps a gin engine with an http.Server lifecycle.
type GenericAPIServer struct {
	*gin.Engine

	address         string
	healthz         bool
	enableProfiling bool
	server          *http.Server
}

func (s *GenericAPIServer) setup() {
	s.Use(gin.Recovery())

	if s.healthz {
		s.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
	if s.enableProfiling {
		pprof.Register(s.Engine)
	}
}

// Address returns the listen address.
func (s *GenericAPIServer) Address() string {
	return s.address
}

// Run starts serving and blocks until the server stops.
func (s *GenericAPIServer) Run() error {
	s.server = &http.Server{
		Addr:    s.address,
		Handler: s.Engine,
	}

	logger.Info("[Server] listening on %s", s.address)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen on %s: %w", s.address, err)
	}
	return nil
}

// Close shuts the server down, giving in-flight requests ten seconds.
func (s *GenericAPIServer) Close() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Warn("[Server] shutdown: %v", err)
	}
}
