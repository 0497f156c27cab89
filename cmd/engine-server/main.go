// Command engine-server exposes an Engine over HTTP: run/cancel/status
// (SPEC_FULL.md §6), plus a health check, following the teacher
// project's Echo setup conventions (cmd/orchestrator/main.go).
package main

import (
	"context"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/lyzr/flowengine/common/config"
	"github.com/lyzr/flowengine/common/logger"
	"github.com/lyzr/flowengine/common/server"
	"github.com/lyzr/flowengine/common/telemetry"
	"github.com/lyzr/flowengine/engine"
	"github.com/lyzr/flowengine/nodes"
	"github.com/lyzr/flowengine/store/runstore"
	"github.com/lyzr/flowengine/store/statuscache"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithMaxInFlight(cfg.MaxInFlight),
		engine.WithTimeouts(cfg.IntegrationTimeout, cfg.AITimeout),
	}

	if cfg.PostgresDSN != "" {
		store, err := runstore.New(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.Error("connect run store", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		opts = append(opts, engine.WithRunStore(store))
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		opts = append(opts, engine.WithStatusBroadcaster(statuscache.New(rdb)))
	}

	e := engine.New(opts...)
	nodes.RegisterBuiltins(e)

	if cfg.PprofPort != 0 {
		telemetry.New(cfg.PprofPort, log).Start()
	}

	srv := echo.New()
	srv.HideBanner = true
	srv.Use(middleware.Logger())
	srv.Use(middleware.Recover())
	srv.Use(middleware.CORS())
	srv.Use(middleware.RequestID())

	srv.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok", "service": "engine-server"})
	})

	registerRoutes(srv, e, log)

	if err := server.New("engine-server", cfg.Port, srv, log).Run(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
