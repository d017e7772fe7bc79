package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// DefaultWatcherChannel is the pub/sub channel used to broadcast grant and
// membership changes.
const DefaultWatcherChannel = "taskboard:rbac"

// ValkeyWatcher implements casbin's persist.Watcher over Valkey pub/sub.
// Messages carry the publisher id so a process ignores its own updates.
type ValkeyWatcher struct {
	client  valkey.Client
	channel string
	id      string

	mu       sync.Mutex
	callback func(string)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewValkeyWatcher connects to addr and starts listening on channel.
func NewValkeyWatcher(addr, channel string) (*ValkeyWatcher, error) {
	if channel == "" {
		channel = DefaultWatcherChannel
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	subCtx, subCancel := context.WithCancel(context.Background())
	w := &ValkeyWatcher{
		client:  client,
		channel: channel,
		id:      uuid.New().String(),
		cancel:  subCancel,
		done:    make(chan struct{}),
	}
	go w.listen(subCtx)

	slog.Info("Initialized Valkey RBAC watcher", "address", addr, "channel", channel)
	return w, nil
}

func (w *ValkeyWatcher) listen(ctx context.Context) {
	defer close(w.done)

	sub := w.client.B().Subscribe().Channel(w.channel).Build()
	err := w.client.Receive(ctx, sub, func(msg valkey.PubSubMessage) {
		if msg.Message == w.id {
			return
		}
		w.mu.Lock()
		cb := w.callback
		w.mu.Unlock()
		if cb != nil {
			cb(msg.Message)
		}
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("RBAC watcher subscription ended", "channel", w.channel, "error", err)
	}
}

// SetUpdateCallback sets the function run when another process publishes.
func (w *ValkeyWatcher) SetUpdateCallback(cb func(string)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callback = cb
	return nil
}

// Update announces a change to every other process.
func (w *ValkeyWatcher) Update() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := w.client.B().Publish().Channel(w.channel).Message(w.id).Build()
	if err := w.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to publish RBAC update: %w", err)
	}
	return nil
}

// Close stops listening and releases the client.
func (w *ValkeyWatcher) Close() {
	w.cancel()
	<-w.done
	w.client.Close()
}
