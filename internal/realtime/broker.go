// Package realtime fans out server-to-client Notifications (spec.md §4.7:
// "broadcast any derived public notifications to all clients") over SSE.
//
// Grounded on the teacher's internal/realtime.Broker: a per-key subscriber
// map plus a buffered broadcast channel drained by one background goroutine,
// adapted from the teacher's per-auction int64 key to spec.md's farm-scoped
// or fully-broadcast Notification.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/metrics"
)

// Broker manages SSE connections and fans out events.Notification values.
type Broker struct {
	logger *slog.Logger

	// Per-farm subscribers, plus the farm-less "every client" set under key 0.
	subscribers map[domain.FarmId]map[*Subscriber]struct{}
	mu          sync.RWMutex

	events chan events.Notification
	done   chan struct{}
}

// broadcastKey is the sentinel farm id every client implicitly subscribes
// to, for notifications with FarmID == nil (spec.md's "UsedItemFound"
// optionally farm-scoped; nil means every client).
const broadcastKey domain.FarmId = 0

// Subscriber represents an SSE client connection bound to one farm.
type Subscriber struct {
	ID       string
	FarmID   domain.FarmId
	Messages chan []byte
	Done     chan struct{}
}

// NewBroker creates a new SSE broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		logger:      logger,
		subscribers: make(map[domain.FarmId]map[*Subscriber]struct{}),
		events:      make(chan events.Notification, 1000),
		done:        make(chan struct{}),
	}
}

// Start begins the broadcast loop.
func (b *Broker) Start() {
	go b.broadcastLoop()
	b.logger.Info("sse_broker_started")
}

// Stop gracefully shuts down the broker.
func (b *Broker) Stop() {
	close(b.done)
	b.logger.Info("sse_broker_stopped")
}

// Subscribe adds a subscriber to sub.FarmID's stream plus every broadcast
// notification (farmID==0 is itself a valid farm id in tests, but the real
// host never assigns it, matching the teacher's reserved-sentinel pattern).
func (b *Broker) Subscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range []domain.FarmId{sub.FarmID, broadcastKey} {
		if b.subscribers[key] == nil {
			b.subscribers[key] = make(map[*Subscriber]struct{})
		}
		b.subscribers[key][sub] = struct{}{}
	}
	metrics.SSEConnectionsActive.Inc()
	b.logger.Debug("sse_subscriber_added", slog.Int64("farm_id", int64(sub.FarmID)), slog.String("subscriber_id", sub.ID))
}

// Unsubscribe removes a subscriber from every key it was registered under.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, key := range []domain.FarmId{sub.FarmID, broadcastKey} {
		if subs, ok := b.subscribers[key]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(b.subscribers, key)
			}
		}
	}
	metrics.SSEConnectionsActive.Dec()
	b.logger.Debug("sse_subscriber_removed", slog.Int64("farm_id", int64(sub.FarmID)), slog.String("subscriber_id", sub.ID))
}

// Broadcast queues a notification for fan-out. A nil FarmID reaches every
// subscriber; a non-nil FarmID reaches only that farm's subscribers.
func (b *Broker) Broadcast(n events.Notification) {
	select {
	case b.events <- n:
	default:
		b.logger.Warn("sse_event_dropped_queue_full", slog.String("kind", n.Kind))
	}
}

func (b *Broker) broadcastLoop() {
	for {
		select {
		case <-b.done:
			return
		case n := <-b.events:
			b.deliver(n)
		}
	}
}

func (b *Broker) deliver(n events.Notification) {
	key := broadcastKey
	if n.FarmID != nil {
		key = *n.FarmID
	}

	b.mu.RLock()
	subs := b.subscribers[key]
	count := len(subs)
	b.mu.RUnlock()
	if count == 0 {
		return
	}

	data, err := json.Marshal(n)
	if err != nil {
		b.logger.Error("sse_event_marshal_error", slog.String("error", err.Error()))
		return
	}
	message := formatSSE(n.Kind, data)

	b.mu.RLock()
	for sub := range b.subscribers[key] {
		select {
		case sub.Messages <- message:
		default:
		}
	}
	b.mu.RUnlock()

	metrics.SSESubscribersPerFarm.Observe(float64(count))
	b.logger.Debug("sse_event_broadcast", slog.Int64("farm_id", int64(key)), slog.String("kind", n.Kind), slog.Int("subscribers", count))
}

func formatSSE(eventType string, data []byte) []byte {
	result := make([]byte, 0, len(eventType)+len(data)+20)
	result = append(result, "event: "...)
	result = append(result, eventType...)
	result = append(result, '\n')
	result = append(result, "data: "...)
	result = append(result, data...)
	result = append(result, '\n', '\n')
	return result
}

// Stats returns broker statistics, for the introspection endpoint.
func (b *Broker) Stats() BrokerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	perFarm := make([]FarmSubscribers, 0, len(b.subscribers))
	for farmID, subs := range b.subscribers {
		if farmID == broadcastKey {
			continue
		}
		count := len(subs)
		total += count
		perFarm = append(perFarm, FarmSubscribers{FarmID: farmID, Subscribers: count})
	}
	return BrokerStats{TotalConnections: total, Farms: perFarm}
}

// BrokerStats is a point-in-time summary of subscriber counts.
type BrokerStats struct {
	TotalConnections int               `json:"total_connections"`
	Farms            []FarmSubscribers `json:"farms"`
}

// FarmSubscribers is one farm's subscriber count.
type FarmSubscribers struct {
	FarmID      domain.FarmId `json:"farm_id"`
	Subscribers int           `json:"subscribers"`
}
