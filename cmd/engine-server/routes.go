package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/lyzr/flowengine/engine"
	"github.com/lyzr/flowengine/patch"
	"github.com/lyzr/flowengine/sdk"
)

type runRequest struct {
	Workflow sdk.Workflow           `json:"workflow"`
	Inputs   map[string]interface{} `json:"inputs"`
	Patch    []patch.Operation      `json:"patch,omitempty"`
}

func registerRoutes(srv *echo.Echo, e *engine.Engine, log sdk.Logger) {
	srv.POST("/runs", func(c echo.Context) error {
		var req runRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}

		wf := req.Workflow
		if len(req.Patch) > 0 {
			if err := patch.Validate(req.Patch); err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid patch: "+err.Error())
			}
			patched, err := patch.Apply(wf, req.Patch)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "failed to apply patch: "+err.Error())
			}
			wf = patched
		}

		runID, err := e.RunAsync(wf, sdk.RunInputs(req.Inputs))
		if err != nil {
			log.Error("run failed to start", "error", err)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return c.JSON(http.StatusAccepted, map[string]string{"run_id": runID})
	})

	srv.POST("/runs/:id/cancel", func(c echo.Context) error {
		if err := e.Cancel(c.Param("id")); err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return c.NoContent(http.StatusAccepted)
	})

	srv.GET("/runs/:id/status", func(c echo.Context) error {
		snap, err := e.Status(c.Param("id"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return c.JSON(http.StatusOK, snap)
	})
}
