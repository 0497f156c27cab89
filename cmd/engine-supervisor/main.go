// Command engine-supervisor watches the live run snapshots an
// engine-server publishes to Redis and marks runs that have stopped
// heartbeating as failed in the Postgres run store, the same role the
// teacher project's cmd/workflow-runner/supervisor.TimeoutDetector
// plays for its own workers -- adapted here to poll an in-memory
// snapshot cache instead of a SQL "last_event_at" column, since this
// engine never writes partial run state to Postgres until a run
// finishes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lyzr/flowengine/common/config"
	"github.com/lyzr/flowengine/common/logger"
	"github.com/lyzr/flowengine/sdk"
	"github.com/lyzr/flowengine/store/runstore"
	"github.com/lyzr/flowengine/store/statuscache"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// hangFactor is how many poll intervals may pass with no heartbeat
// before a run is considered hung.
const hangFactor = 4

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.RedisAddr == "" || cfg.PostgresDSN == "" {
		log.Info("engine-supervisor requires REDIS_ADDR and POSTGRES_DSN, nothing to watch", "redis_addr", cfg.RedisAddr, "postgres_dsn_set", cfg.PostgresDSN != "")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	broadcaster := statuscache.New(rdb)

	store, err := runstore.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("connect run store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	snapshots, err := broadcaster.SubscribeAll(ctx)
	if err != nil {
		log.Error("subscribe to run snapshots", "error", err)
		os.Exit(1)
	}

	det := newDetector(store, log)
	tick := rateLimitedTicker(ctx, cfg.SupervisorPollInterval)

	log.Info("engine-supervisor starting", "poll_interval", cfg.SupervisorPollInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("engine-supervisor shutting down")
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			det.observe(snap)
		case <-tick:
			det.sweep(ctx, cfg.SupervisorPollInterval*hangFactor)
		}
	}
}

// rateLimitedTicker fires on interval, gated through a token-bucket
// limiter rather than a bare time.Ticker, so a slow sweep can't pile
// up a backlog of ticks once it falls behind.
func rateLimitedTicker(ctx context.Context, interval time.Duration) <-chan struct{} {
	out := make(chan struct{})
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	go func() {
		defer close(out)
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			select {
			case out <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// detector tracks the last-seen snapshot for every run it has heard
// from and marks ones that have gone quiet as failed.
type detector struct {
	store *runstore.Store
	log   sdk.Logger
	seen  map[string]sdk.Snapshot
}

func newDetector(store *runstore.Store, log sdk.Logger) *detector {
	return &detector{store: store, log: log, seen: make(map[string]sdk.Snapshot)}
}

func (d *detector) observe(snap sdk.Snapshot) {
	if snap.Done {
		delete(d.seen, snap.RunID)
		return
	}
	d.seen[snap.RunID] = snap
}

func (d *detector) sweep(ctx context.Context, hangAfter time.Duration) {
	cutoff := time.Now().Add(-hangAfter)
	for runID, snap := range d.seen {
		if snap.AsOf.After(cutoff) {
			continue
		}
		d.log.Warn("run stopped heartbeating, marking failed", "run_id", runID, "last_seen", snap.AsOf)
		report := sdk.Report{
			RunID:         runID,
			Status:        sdk.RunFailed,
			NodeResults:   snap.NodeResults,
			ExecutionPath: snap.ExecutionPath,
			FinishedAt:    time.Now(),
			Warnings: []sdk.ResolveWarning{{
				NodeID: runID,
				Reason: "run presumed hung: no heartbeat for " + hangAfter.String(),
			}},
		}
		if err := d.store.Save(ctx, report); err != nil {
			d.log.Error("save hung run report", "run_id", runID, "error", err)
			continue
		}
		delete(d.seen, runID)
	}
}
