// Package statuscache provides a live-snapshot engine.StatusBroadcaster
// backed by Redis pub/sub, adapted from the teacher project's Redis
// client wrapper (common/redis/client.go): publish each snapshot as
// JSON on a per-run channel so an HTTP adapter can relay it to
// long-polling or websocket clients without coupling to the engine's
// in-process state.
package statuscache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lyzr/flowengine/sdk"
	"github.com/redis/go-redis/v9"
)

// Broadcaster publishes run snapshots to "engine:run:<run_id>:status".
type Broadcaster struct {
	client *redis.Client
}

// New wraps an existing redis client.
func New(client *redis.Client) *Broadcaster {
	return &Broadcaster{client: client}
}

func channelFor(runID string) string {
	return "engine:run:" + runID + ":status"
}

// Publish marshals snapshot and publishes it on the run's channel.
func (b *Broadcaster) Publish(ctx context.Context, snapshot sdk.Snapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := b.client.Publish(ctx, channelFor(snapshot.RunID), body).Err(); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// Subscribe returns a channel of decoded snapshots for a run, closing
// when ctx is cancelled or the subscription errors out.
func (b *Broadcaster) Subscribe(ctx context.Context, runID string) (<-chan sdk.Snapshot, error) {
	return relay(ctx, b.client.Subscribe(ctx, channelFor(runID)))
}

// SubscribeAll returns every run's snapshots on one channel, for a
// supervisor that watches all in-flight runs rather than one.
func (b *Broadcaster) SubscribeAll(ctx context.Context) (<-chan sdk.Snapshot, error) {
	return relay(ctx, b.client.PSubscribe(ctx, "engine:run:*:status"))
}

func relay(ctx context.Context, sub *redis.PubSub) (<-chan sdk.Snapshot, error) {
	out := make(chan sdk.Snapshot)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var snap sdk.Snapshot
				if err := json.Unmarshal([]byte(msg.Payload), &snap); err == nil {
					select {
					case out <- snap:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()
	return out, nil
}
