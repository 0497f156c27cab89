// Package telemetry exposes a pprof debug endpoint, matching the
// teacher project's telemetry bundle minus the metrics half (no
// component here needs Prometheus, see DESIGN.md).
package telemetry

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/lyzr/flowengine/sdk"
)

// Telemetry runs a pprof server for runtime profiling.
type Telemetry struct {
	log       sdk.Logger
	pprofAddr string
}

// New builds a Telemetry bound to localhost:pprofPort.
func New(pprofPort int, log sdk.Logger) *Telemetry {
	return &Telemetry{log: log, pprofAddr: fmt.Sprintf("localhost:%d", pprofPort)}
}

// Start launches the pprof server in the background.
func (t *Telemetry) Start() {
	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := http.ListenAndServe(t.pprofAddr, nil); err != nil {
			t.log.Error("pprof server error", "error", err)
		}
	}()
}
