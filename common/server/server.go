// Package server provides graceful-shutdown wrapping for the Echo
// servers used by cmd/engine-server.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/flowengine/sdk"
)

// Server wraps an Echo instance with graceful shutdown on SIGINT/SIGTERM.
type Server struct {
	echo *echo.Echo
	log  sdk.Logger
	name string
	addr string
}

// New wraps an already-configured Echo instance.
func New(name string, port int, e *echo.Echo, log sdk.Logger) *Server {
	return &Server{echo: e, log: log, name: name, addr: fmt.Sprintf(":%d", port)}
}

// Run starts the server and blocks until it exits, either from a
// listen error or a graceful shutdown triggered by an interrupt.
func (s *Server) Run() error {
	serverErrors := make(chan error, 1)
	go func() {
		s.log.Info(s.name+" starting", "addr", s.addr)
		serverErrors <- s.echo.Start(s.addr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		s.log.Info("shutdown signal received", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(ctx); err != nil {
			s.log.Error("graceful shutdown failed", "error", err)
			return fmt.Errorf("could not stop server: %w", err)
		}
		s.log.Info("shutdown complete")
	}
	return nil
}
