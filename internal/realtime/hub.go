package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"
)

// Hub fans change notifications out to the subscriptions watching them.
type Hub struct {
	mu       sync.Mutex
	watchers map[Change]map[chan struct{}]struct{}
	logger   *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		watchers: make(map[Change]map[chan struct{}]struct{}),
		logger:   logger.With("component", "realtime"),
	}
}

// Publish wakes every watcher of c. Wake-ups coalesce: a watcher that has
// not consumed the previous signal yet is not signalled twice.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.watchers[c] {
		signal(ch)
	}
}

// PublishAll wakes every watcher. Used after the listener reconnects, when
// notifications may have been lost.
func (h *Hub) PublishAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.watchers {
		for ch := range set {
			signal(ch)
		}
	}
}

// Watchers returns the number of registered watchers.
func (h *Hub) Watchers() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, set := range h.watchers {
		n += len(set)
	}
	return n
}

func (h *Hub) watch(c Change) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.watchers[c]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.watchers[c] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.watchers[c], ch)
			if len(h.watchers[c]) == 0 {
				delete(h.watchers, c)
			}
		})
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Listen subscribes to Channel on Postgres and publishes every notification
// until ctx is cancelled.
func (h *Hub) Listen(ctx context.Context, databaseURL string) error {
	listener := pq.NewListener(databaseURL, 10*time.Second, time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				h.logger.Warn("Listener event", "event", ev, "error", err)
			}
		})
	defer listener.Close()

	if err := listener.Listen(Channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", Channel, err)
	}
	h.logger.Info("Listening for changes", "channel", Channel)

	return h.consume(ctx, listener.Notify, listener.Ping, 90*time.Second)
}

func (h *Hub) consume(ctx context.Context, notifications <-chan *pq.Notification, ping func() error, pingEvery time.Duration) error {
	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			// A nil notification means the connection was re-established.
			if n == nil {
				h.logger.Info("Listener reconnected, resyncing subscribers")
				h.PublishAll()
				continue
			}
			c, err := ParseChange(n.Extra)
			if err != nil {
				h.logger.Warn("Ignoring notification", "payload", n.Extra, "error", err)
				continue
			}
			h.Publish(c)
		case <-ticker.C:
			if err := ping(); err != nil {
				h.logger.Warn("Listener ping failed", "error", err)
			}
		}
	}
}
